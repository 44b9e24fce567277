// Package authz models who is acting and whether they may manage a delivery
// partner.
package authz

import (
	"strings"

	"github.com/google/uuid"

	"github.com/example/stockroute/internal/models"
)

type ActorKind string

const (
	KindAdmin                ActorKind = "admin"
	KindManagerActingAsAdmin ActorKind = "manager"
)

// Actor is a logged in shop identity. A manager always acts with its admin's
// data ownership; ManagerID is only set for KindManagerActingAsAdmin.
type Actor struct {
	Kind       ActorKind
	AdminID    uuid.UUID
	AdminEmail string
	ManagerID  *uuid.UUID
}

// Admin builds an Actor for a shop owner.
func Admin(userID uuid.UUID, email string) Actor {
	return Actor{Kind: KindAdmin, AdminID: userID, AdminEmail: normalizeEmail(email)}
}

// ManagerActingAsAdmin builds an Actor for a manager of adminID.
func ManagerActingAsAdmin(adminID uuid.UUID, adminEmail string, managerID uuid.UUID) Actor {
	id := managerID
	return Actor{Kind: KindManagerActingAsAdmin, AdminID: adminID, AdminEmail: normalizeEmail(adminEmail), ManagerID: &id}
}

// EffectiveUserID is the id that owns data for this actor.
func (a Actor) EffectiveUserID() uuid.UUID {
	return a.AdminID
}

func (a Actor) IsManager() bool {
	return a.Kind == KindManagerActingAsAdmin
}

// Principal is everything a request can prove about itself.
type Principal struct {
	Actor *Actor
	// Superuser is set when the request carried the configured bypass secret.
	Superuser bool
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionDelete  Action = "delete"
)

type Reason string

const (
	ReasonOwner      Reason = "owner"
	ReasonAdminEmail Reason = "admin_email"
	ReasonSuperuser  Reason = "superuser"
	ReasonDenied     Reason = "denied"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// CanManagePartner checks whether principal may perform action on partner.
// Ownership and admin-email proofs apply to every action; the superuser
// secret is only honoured for deletion.
func CanManagePartner(partner *models.DeliveryPartner, principal Principal, action Action) Decision {
	if actor := principal.Actor; actor != nil {
		if partner.CreatedByUser != nil && *partner.CreatedByUser == actor.EffectiveUserID() {
			return Decision{Allowed: true, Reason: ReasonOwner}
		}
		if actor.AdminEmail != "" && strings.EqualFold(strings.TrimSpace(partner.AdminEmail), actor.AdminEmail) {
			return Decision{Allowed: true, Reason: ReasonAdminEmail}
		}
	}
	if principal.Superuser && action == ActionDelete {
		return Decision{Allowed: true, Reason: ReasonSuperuser}
	}
	return Decision{Allowed: false, Reason: ReasonDenied}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
