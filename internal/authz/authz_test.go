package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/example/stockroute/internal/models"
)

func TestCanManagePartner(t *testing.T) {
	owner := uuid.New()
	partner := &models.DeliveryPartner{CreatedByUser: &owner, AdminEmail: "Boss@Shop.com"}

	ownerActor := Admin(owner, "owner@shop.com")
	manager := ManagerActingAsAdmin(owner, "owner@shop.com", uuid.New())
	emailAdmin := Admin(uuid.New(), "boss@shop.com")
	stranger := Admin(uuid.New(), "stranger@shop.com")

	tests := []struct {
		name      string
		principal Principal
		action    Action
		want      Decision
	}{
		{"owner approves", Principal{Actor: &ownerActor}, ActionApprove, Decision{true, ReasonOwner}},
		{"manager acts as owner", Principal{Actor: &manager}, ActionReject, Decision{true, ReasonOwner}},
		{"admin email match is case insensitive", Principal{Actor: &emailAdmin}, ActionApprove, Decision{true, ReasonAdminEmail}},
		{"stranger denied", Principal{Actor: &stranger}, ActionApprove, Decision{false, ReasonDenied}},
		{"superuser cannot approve", Principal{Superuser: true}, ActionApprove, Decision{false, ReasonDenied}},
		{"superuser deletes", Principal{Superuser: true}, ActionDelete, Decision{true, ReasonSuperuser}},
		{"anonymous denied", Principal{}, ActionDelete, Decision{false, ReasonDenied}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanManagePartner(partner, tt.principal, tt.action))
		})
	}
}

func TestManagerEffectiveUserIsAdmin(t *testing.T) {
	admin := uuid.New()
	managerID := uuid.New()
	actor := ManagerActingAsAdmin(admin, "A@B.com", managerID)

	assert.Equal(t, admin, actor.EffectiveUserID())
	assert.True(t, actor.IsManager())
	assert.Equal(t, managerID, *actor.ManagerID)
	assert.Equal(t, "a@b.com", actor.AdminEmail)
}
