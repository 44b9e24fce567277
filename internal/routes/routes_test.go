package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/config"
	"github.com/example/stockroute/internal/database"
	"github.com/example/stockroute/internal/logger"
	"github.com/example/stockroute/internal/middleware"
	"github.com/example/stockroute/internal/otp"
	"github.com/example/stockroute/internal/services"
	"github.com/example/stockroute/internal/utils"
)

const (
	testSecret = "test-secret"
	rootSecret = "root-secret"
)

func init() {
	utils.PasswordCost = bcrypt.MinCost
}

type mailbox struct {
	mu   sync.Mutex
	sent []services.Mail
}

func (m *mailbox) Send(_ context.Context, mail services.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

var codePattern = regexp.MustCompile(`code is (\d+)`)

// lastCode returns the most recent otp mailed to addr.
func (m *mailbox) lastCode(t *testing.T, addr string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To != addr {
			continue
		}
		if match := codePattern.FindStringSubmatch(m.sent[i].Text); match != nil {
			return match[1]
		}
	}
	t.Fatalf("no otp mailed to %s", addr)
	return ""
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type harness struct {
	t    *testing.T
	app  *fiber.App
	db   *gorm.DB
	mail *mailbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := database.OpenTest(t)
	cfg := &config.Config{
		App:   config.AppConfig{Name: "stockroute-test"},
		JWT:   config.JWTConfig{Secret: testSecret, TTLHours: 1},
		OTP:   config.OTPConfig{ThrottleLimit: 5, ThrottleWindow: time.Minute},
		Admin: config.AdminConfig{BypassID: rootSecret},
	}
	mail := &mailbox{}
	policy := otp.NewPolicy()
	log := logger.Nop()

	deps := Deps{
		DB:        db,
		Config:    cfg,
		Log:       log,
		Accounts:  services.NewAccountService(db, policy, mail, log, nil, testSecret, time.Hour),
		Partners:  services.NewPartnerService(db, policy, mail, nil, log, nil),
		Inventory: services.NewInventoryService(db, log),
	}
	return &harness{t: t, app: NewApp(deps, nil), db: db, mail: mail}
}

func (h *harness) call(method, path, token string, body any, headers ...string) (int, envelope) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// signup registers and verifies a shop owner and returns its token.
func (h *harness) signup(email, gstin string) string {
	h.t.Helper()
	status, env := h.call(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"name": "Owner", "email": email, "contact": "99999", "shop_name": "Cold Treats",
		"gstin": gstin, "password": "secret1",
	})
	require.Equal(h.t, http.StatusCreated, status, env.Error.Message)

	status, env = h.call(http.MethodPost, "/api/auth/verify-otp", "", map[string]any{
		"email": email, "otp": h.mail.lastCode(h.t, email),
	})
	require.Equal(h.t, http.StatusOK, status, env.Error.Message)
	return decode[struct {
		Token string `json:"token"`
	}](h.t, env).Token
}

type partnerBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	status, env := h.call(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestShopRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	status, env := h.call(http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, _ = h.call(http.MethodGet, "/api/delivery/me", "not-a-session", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPartnerLifecycleEndToEnd(t *testing.T) {
	h := newHarness(t)
	owner := h.signup("boss@shop.com", "GST1")
	stranger := h.signup("other@shop.com", "GST2")

	status, env := h.call(http.MethodPost, "/api/delivery/register", owner, map[string]any{
		"name": "Rider", "email": "rider@x.com", "phone": "12345", "password": "ride123",
	})
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	partner := decode[partnerBody](t, env)
	assert.Equal(t, "pending", partner.Status)

	status, env = h.call(http.MethodPost, "/api/delivery/register", owner, map[string]any{
		"name": "Rider", "email": "rider@x.com", "password": "ride123",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	login := map[string]any{"email": "rider@x.com", "password": "ride123"}
	status, _ = h.call(http.MethodPost, "/api/delivery/login", "", login)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = h.call(http.MethodPatch, "/api/delivery/partners/"+partner.ID+"/approve", stranger, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = h.call(http.MethodPatch, "/api/delivery/partners/"+partner.ID+"/approve", owner, nil)
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	assert.Equal(t, "approved", decode[partnerBody](t, env).Status)

	status, env = h.call(http.MethodGet, "/api/delivery/partners?status=approved", owner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]partnerBody](t, env), 1)
	status, env = h.call(http.MethodGet, "/api/delivery/partners", stranger, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]partnerBody](t, env))

	status, env = h.call(http.MethodPost, "/api/delivery/login", "", login)
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	assert.Equal(t, partner.ID, decode[struct {
		PartnerID string `json:"partner_id"`
	}](t, env).PartnerID)

	status, env = h.call(http.MethodPost, "/api/delivery/login/verify", "", map[string]any{
		"partner_id": partner.ID, "otp": "not-it",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "OTP_INVALID", env.Error.Code)

	status, env = h.call(http.MethodPost, "/api/delivery/login/verify", "", map[string]any{
		"partner_id": partner.ID, "otp": h.mail.lastCode(t, "rider@x.com"),
	})
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	session := decode[struct {
		Token string `json:"token"`
	}](t, env).Token
	require.NotEmpty(t, session)

	status, env = h.call(http.MethodGet, "/api/delivery/me", session, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, partner.ID, decode[partnerBody](t, env).ID)

	// Partner works the shop's customers and orders.
	status, env = h.call(http.MethodPost, "/api/customers", owner, map[string]any{
		"name": "Lakshmi Stores", "contacts": []string{"98450"}, "shop_name": "Lakshmi",
	})
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	customerID := decode[partnerBody](t, env).ID

	status, env = h.call(http.MethodPost, "/api/products", owner, map[string]any{
		"name": "Cone", "unit": "box", "quantity": 10, "price": "40",
	})
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	productID := decode[partnerBody](t, env).ID

	status, env = h.call(http.MethodPost, "/api/orders", owner, map[string]any{
		"customer_id": customerID,
		"items":       []map[string]any{{"product_id": productID, "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	orderID := decode[partnerBody](t, env).ID

	status, env = h.call(http.MethodPatch, "/api/orders/"+orderID+"/assign", stranger, map[string]any{
		"delivery_partner_id": partner.ID,
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, env = h.call(http.MethodPatch, "/api/orders/"+orderID+"/assign", owner, map[string]any{
		"delivery_partner_id": partner.ID,
	})
	require.Equal(t, http.StatusOK, status, env.Error.Message)

	status, env = h.call(http.MethodGet, "/api/delivery/orders", session, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]partnerBody](t, env), 1)

	status, env = h.call(http.MethodPatch, "/api/delivery/orders/"+orderID+"/status", session, map[string]any{
		"delivery_status": "Delivered",
	})
	require.Equal(t, http.StatusOK, status, env.Error.Message)

	status, env = h.call(http.MethodGet, "/api/delivery/customers/search?q=lakshmi", session, nil)
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	assert.Len(t, decode[[]partnerBody](t, env), 1)

	status, _ = h.call(http.MethodGet, "/api/delivery/customers/"+customerID, session, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = h.call(http.MethodGet, "/api/delivery/search-history", session, nil)
	require.Equal(t, http.StatusOK, status)
	history := decode[[]struct {
		CustomerID string `json:"customer_id"`
		Name       string `json:"name"`
	}](t, env)
	require.Len(t, history, 1)
	assert.Equal(t, customerID, history[0].CustomerID)
	assert.Equal(t, "Lakshmi Stores", history[0].Name)

	// Rejection revokes the live session on the next request.
	status, _ = h.call(http.MethodPatch, "/api/delivery/partners/"+partner.ID+"/reject", owner, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = h.call(http.MethodGet, "/api/delivery/me", session, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "access revoked", env.Error.Message)

	// The superuser secret may delete but never approve.
	status, _ = h.call(http.MethodPatch, "/api/delivery/partners/"+partner.ID+"/approve", "", nil,
		middleware.SuperuserHeader, rootSecret)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = h.call(http.MethodDelete, "/api/delivery/partners/"+partner.ID, "", nil,
		middleware.SuperuserHeader, "wrong")
	assert.Equal(t, http.StatusForbidden, status)

	status, env = h.call(http.MethodDelete, "/api/delivery/partners/"+partner.ID, "", nil,
		middleware.SuperuserHeader, rootSecret)
	require.Equal(t, http.StatusOK, status, env.Error.Message)

	status, _ = h.call(http.MethodGet, "/api/delivery/me", session, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestManagerSessionActsForAdmin(t *testing.T) {
	h := newHarness(t)
	owner := h.signup("boss@shop.com", "GST1")

	status, env := h.call(http.MethodPost, "/api/managers", owner, map[string]any{
		"name": "Ravi", "email": "ravi@shop.com", "password": "secret2",
	})
	require.Equal(t, http.StatusCreated, status, env.Error.Message)

	status, env = h.call(http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ravi@shop.com", "password": "secret2",
	})
	require.Equal(t, http.StatusOK, status, env.Error.Message)
	manager := decode[struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}](t, env)
	assert.Equal(t, "manager", manager.Role)

	status, env = h.call(http.MethodPost, "/api/delivery/register", manager.Token, map[string]any{
		"name": "Rider", "email": "rider@x.com", "password": "ride123",
	})
	require.Equal(t, http.StatusCreated, status, env.Error.Message)
	partnerID := decode[partnerBody](t, env).ID

	status, env = h.call(http.MethodPatch, fmt.Sprintf("/api/delivery/partners/%s/approve", partnerID), manager.Token, nil)
	require.Equal(t, http.StatusOK, status, env.Error.Message)

	status, _ = h.call(http.MethodPost, "/api/managers", manager.Token, map[string]any{
		"name": "Sub", "email": "sub@shop.com", "password": "secret3",
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestOTPAcceptsNumericJSON(t *testing.T) {
	h := newHarness(t)
	status, _ := h.call(http.MethodPost, "/api/auth/signup", "", map[string]any{
		"name": "Owner", "email": "boss@shop.com", "contact": "1", "shop_name": "S",
		"gstin": "GST1", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status)

	code := h.mail.lastCode(t, "boss@shop.com")
	body := fmt.Sprintf(`{"email":"boss@shop.com","otp":%s}`, trimLeadingZeros(code))
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify-otp", bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func trimLeadingZeros(code string) string {
	for len(code) > 1 && code[0] == '0' {
		code = code[1:]
	}
	return code
}
