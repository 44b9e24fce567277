package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/database"
	"github.com/example/stockroute/internal/otp"
	"github.com/example/stockroute/internal/utils"
)

func init() {
	utils.PasswordCost = bcrypt.MinCost
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, mail Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *fakeMailer) last() Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Mail{}
	}
	return m.sent[len(m.sent)-1]
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// sequencePolicy issues 000001, 000002, ... so tests know every code.
func sequencePolicy(c *clock) *otp.Policy {
	var n int
	var mu sync.Mutex
	p := otp.NewPolicy()
	p.Now = c.Now
	p.Generate = func(length int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%0*d", length, n), nil
	}
	return p
}

type fixture struct {
	db       *gorm.DB
	clock    *clock
	policy   *otp.Policy
	mailer   *fakeMailer
	partners *PartnerService
	accounts *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.OpenTest(t)
	c := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	policy := sequencePolicy(c)
	mailer := &fakeMailer{}

	partners := NewPartnerService(db, policy, mailer, nil, nil, nil)
	partners.now = c.Now

	return &fixture{
		db:       db,
		clock:    c,
		policy:   policy,
		mailer:   mailer,
		partners: partners,
		accounts: NewAccountService(db, policy, mailer, nil, nil, "test-secret", time.Hour),
	}
}
