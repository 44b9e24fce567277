package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/authz"
	"github.com/example/stockroute/internal/logger"
	"github.com/example/stockroute/internal/models"
	"github.com/example/stockroute/internal/utils"
)

type errorBody struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger.Nop())})
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, errorBody) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var body errorBody
	if resp.StatusCode >= 400 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func TestErrorHandlerMapsCodes(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    apperr.Code
		message string
	}{
		{"forbidden", apperr.New(apperr.CodeForbidden, "access revoked"), 403, apperr.CodeForbidden, "access revoked"},
		{"otp", apperr.New(apperr.CodeOTPExpired, "otp has expired"), 400, apperr.CodeOTPExpired, "otp has expired"},
		{"dependency", apperr.New(apperr.CodeDependency, "mail down"), 502, apperr.CodeDependency, "mail down"},
		{"internal hides message", errors.New("pq: relation missing"), 500, apperr.CodeInternal, "internal server error"},
		{"fiber not found", fiber.ErrNotFound, 404, apperr.CodeNotFound, "Not Found"},
		{"fiber too large", fiber.ErrRequestEntityTooLarge, 413, apperr.CodeValidation, "Request Entity Too Large"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp()
			app.Get("/", func(c *fiber.Ctx) error { return tc.err })

			status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tc.status, status)
			assert.False(t, body.Success)
			assert.Equal(t, string(tc.code), body.Error.Code)
			assert.Equal(t, tc.message, body.Error.Message)
		})
	}
}

type fakeAuthenticator struct {
	partners map[string]*models.DeliveryPartner
}

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (*models.DeliveryPartner, error) {
	p, ok := f.partners[token]
	if !ok {
		return nil, apperr.New(apperr.CodeUnauthorized, "session expired")
	}
	if p.Status != models.PartnerApproved {
		return nil, apperr.New(apperr.CodeForbidden, "access revoked")
	}
	return p, nil
}

func TestDeliveryAuth(t *testing.T) {
	approved := &models.DeliveryPartner{Status: models.PartnerApproved}
	approved.ID = uuid.New()
	rejected := &models.DeliveryPartner{Status: models.PartnerRejected}

	app := newTestApp()
	app.Get("/me", DeliveryAuth(fakeAuthenticator{partners: map[string]*models.DeliveryPartner{
		"good":    approved,
		"revoked": rejected,
	}}), func(c *fiber.Ctx) error {
		p, err := CurrentPartner(c)
		if err != nil {
			return err
		}
		return c.SendString(p.ID.String())
	})

	request := func(header string) (int, errorBody) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		return do(t, app, req)
	}

	status, _ := request("Bearer good")
	assert.Equal(t, 200, status)

	status, body := request("")
	assert.Equal(t, 401, status)
	assert.Equal(t, "missing authorization header", body.Error.Message)

	status, _ = request("Token good")
	assert.Equal(t, 401, status)

	status, body = request("Bearer stale")
	assert.Equal(t, 401, status)
	assert.Equal(t, "session expired", body.Error.Message)

	status, body = request("Bearer revoked")
	assert.Equal(t, 403, status)
	assert.Equal(t, "access revoked", body.Error.Message)
}

func TestCurrentPartnerWithoutGuard(t *testing.T) {
	app := newTestApp()
	app.Get("/", func(c *fiber.Ctx) error {
		_, err := CurrentPartner(c)
		return err
	})
	status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, 401, status)
}

func TestShopAuth(t *testing.T) {
	secret := "shop-secret"
	userID := uuid.New()
	token, err := utils.GenerateToken(secret, authz.Admin(userID, "boss@shop.com"), time.Hour)
	require.NoError(t, err)

	app := newTestApp()
	app.Get("/strict", ShopAuth(secret), func(c *fiber.Ctx) error {
		actor, err := RequireActor(c)
		if err != nil {
			return err
		}
		return c.SendString(actor.EffectiveUserID().String())
	})
	app.Get("/optional", OptionalShopAuth(secret), func(c *fiber.Ctx) error {
		if _, ok := CurrentActor(c); ok {
			return c.SendString("actor")
		}
		return c.SendString("anonymous")
	})

	req := httptest.NewRequest(http.MethodGet, "/strict", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, userID.String(), string(raw))

	req = httptest.NewRequest(http.MethodGet, "/strict", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-jwt")
	status, body := do(t, app, req)
	assert.Equal(t, 401, status)
	assert.Equal(t, "invalid token", body.Error.Message)

	req = httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-jwt")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "anonymous", string(raw))
}

func TestSuperuser(t *testing.T) {
	handler := func(c *fiber.Ctx) error {
		if IsSuperuser(c) {
			return c.SendString("yes")
		}
		return c.SendString("no")
	}

	check := func(secret, presented string) string {
		app := newTestApp()
		app.Get("/", Superuser(secret), handler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if presented != "" {
			req.Header.Set(SuperuserHeader, presented)
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		return string(raw)
	}

	assert.Equal(t, "yes", check("root", "root"))
	assert.Equal(t, "no", check("root", "roots"))
	assert.Equal(t, "no", check("root", ""))
	assert.Equal(t, "no", check("", ""))
}

type fakeLimiter struct {
	counts map[string]int64
	err    error
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func TestOTPThrottle(t *testing.T) {
	limiter := &fakeLimiter{counts: map[string]int64{}}
	app := newTestApp()
	app.Post("/otp", OTPThrottle(limiter, 2, time.Minute, logger.Nop()), func(c *fiber.Ctx) error {
		return c.SendString("sent")
	})

	post := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/otp", strings.NewReader(`{"email":"`+email+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		status, _ := do(t, app, req)
		return status
	}

	assert.Equal(t, 200, post("a@x.com"))
	assert.Equal(t, 200, post(" A@X.com"))
	assert.Equal(t, 429, post("a@x.com"))
	assert.Equal(t, 200, post("b@x.com"))
	assert.Equal(t, int64(3), limiter.counts["otp:/otp:a@x.com"])

	limiter.err = errors.New("redis down")
	assert.Equal(t, 200, post("a@x.com"))
}

func TestOTPThrottleWithoutLimiter(t *testing.T) {
	app := newTestApp()
	app.Post("/otp", OTPThrottle(nil, 1, time.Minute, logger.Nop()), func(c *fiber.Ctx) error {
		return c.SendString("sent")
	})
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/otp", strings.NewReader(`{"email":"a@x.com"}`))
		status, _ := do(t, app, req)
		assert.Equal(t, 200, status)
	}
}
