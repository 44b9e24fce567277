package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/apperr"
	"github.com/example/stockroute/internal/authz"
	"github.com/example/stockroute/internal/logger"
	"github.com/example/stockroute/internal/metrics"
	"github.com/example/stockroute/internal/models"
	"github.com/example/stockroute/internal/otp"
	"github.com/example/stockroute/internal/utils"
)

const flowDeliveryLogin = "delivery_login"

// PartnerService owns the delivery partner lifecycle and session handling.
type PartnerService struct {
	db       *gorm.DB
	otp      *otp.Policy
	mailer   Mailer
	telegram *TelegramService
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewPartnerService wires a PartnerService. telegram and m may be nil.
func NewPartnerService(db *gorm.DB, policy *otp.Policy, mailer Mailer, telegram *TelegramService, log *logger.Logger, m *metrics.Metrics) *PartnerService {
	if log == nil {
		log = logger.Nop()
	}
	return &PartnerService{
		db:       db,
		otp:      policy,
		mailer:   mailer,
		telegram: telegram,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// RegisterPartnerInput is the registration payload.
type RegisterPartnerInput struct {
	Name          string
	Email         string
	Phone         string
	Password      string
	CreatedByUser *uuid.UUID
	AdminID       *uuid.UUID
	AdminEmail    string
}

// Register creates a pending partner, or revives a rejected one registered
// under the same (email, createdByUser) pair.
func (s *PartnerService) Register(ctx context.Context, in RegisterPartnerInput) (*models.DeliveryPartner, error) {
	email := utils.NormalizeEmail(in.Email)

	admin, shopName, err := s.resolveAdmin(ctx, in)
	if err != nil {
		return nil, err
	}
	var adminID *uuid.UUID
	adminEmail := ""
	if admin != nil {
		id := admin.ID
		adminID = &id
		adminEmail = utils.NormalizeEmail(admin.Email)
	}

	passwordHash, err := utils.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooShort) {
			return nil, apperr.New(apperr.CodeValidation, err.Error())
		}
		return nil, apperr.Internal(err, "failed to hash password")
	}

	var existing models.DeliveryPartner
	err = s.ownedBy(s.db.WithContext(ctx).Where("email = ?", email), in.CreatedByUser).First(&existing).Error
	switch {
	case err == nil:
		switch existing.Status {
		case models.PartnerPending:
			return nil, apperr.New(apperr.CodeConflict, "registration already pending approval")
		case models.PartnerApproved:
			return nil, apperr.New(apperr.CodeConflict, "partner already approved")
		}
		existing.Name = in.Name
		existing.Phone = in.Phone
		existing.PasswordHash = passwordHash
		existing.AdminID = adminID
		existing.AdminEmail = adminEmail
		existing.Status = models.PartnerPending
		existing.SessionToken = nil
		existing.OTP = nil
		existing.OTPExpires = nil
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, apperr.Internal(err, "failed to re-register partner")
		}
		s.afterRegister(ctx, &existing, shopName)
		return &existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Internal(err, "failed to look up partner")
	}

	partner := models.DeliveryPartner{
		Name:          in.Name,
		Email:         email,
		Phone:         in.Phone,
		PasswordHash:  passwordHash,
		Status:        models.PartnerPending,
		CreatedByUser: in.CreatedByUser,
		AdminID:       adminID,
		AdminEmail:    adminEmail,
	}
	if err := s.db.WithContext(ctx).Create(&partner).Error; err != nil {
		return nil, apperr.Internal(err, "failed to create partner")
	}
	s.afterRegister(ctx, &partner, shopName)
	return &partner, nil
}

// resolveAdmin finds the shop account a registration is filed under. The
// admin id and email always come from a stored user, so a caller cannot pair
// one shop's id with another shop's email.
func (s *PartnerService) resolveAdmin(ctx context.Context, in RegisterPartnerInput) (*models.User, string, error) {
	var owner, admin *models.User
	if in.CreatedByUser != nil {
		u, err := s.loadUser(ctx, "id = ?", *in.CreatedByUser, "owning user not found")
		if err != nil {
			return nil, "", err
		}
		owner = u
		admin = u
	}
	if in.AdminID != nil {
		if owner != nil && owner.ID != *in.AdminID {
			return nil, "", apperr.New(apperr.CodeValidation, "admin_id does not match the owning user")
		}
		if admin == nil {
			u, err := s.loadUser(ctx, "id = ?", *in.AdminID, "admin not found")
			if err != nil {
				return nil, "", err
			}
			admin = u
		}
	}

	claimed := utils.NormalizeEmail(in.AdminEmail)
	switch {
	case claimed == "":
	case admin != nil:
		if utils.NormalizeEmail(admin.Email) != claimed {
			return nil, "", apperr.New(apperr.CodeValidation, "admin_email does not match the admin account")
		}
	default:
		u, err := s.loadUser(ctx, "email = ?", claimed, "admin not found")
		if err != nil {
			return nil, "", err
		}
		admin = u
	}

	shopName := ""
	if owner != nil {
		shopName = owner.ShopName
	} else if admin != nil {
		shopName = admin.ShopName
	}
	return admin, shopName, nil
}

func (s *PartnerService) loadUser(ctx context.Context, query string, arg any, missing string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, missing)
		}
		return nil, apperr.Internal(err, "failed to load user")
	}
	return &user, nil
}

func (s *PartnerService) ownedBy(q *gorm.DB, createdBy *uuid.UUID) *gorm.DB {
	if createdBy == nil {
		return q.Where("created_by_user IS NULL")
	}
	return q.Where("created_by_user = ?", *createdBy)
}

func (s *PartnerService) afterRegister(ctx context.Context, p *models.DeliveryPartner, shopName string) {
	s.metrics.PartnerTransition(string(models.PartnerPending))
	ctx = s.log.WithField(ctx, "partner_id", p.ID.String())
	s.log.Info(ctx, "delivery partner registered")

	if p.AdminEmail != "" {
		mail := Mail{
			To:      p.AdminEmail,
			Subject: "New delivery partner awaiting approval",
			Text:    fmt.Sprintf("%s (%s, %s) registered as a delivery partner and is waiting for your approval.", p.Name, p.Email, p.Phone),
		}
		if err := s.mailer.Send(ctx, mail); err != nil {
			s.log.Warn(ctx, "partner registration mail failed", err)
		}
	}
	if err := s.telegram.NotifyPartnerRegistered(ctx, p.Name, p.Email, shopName); err != nil {
		s.log.Warn(ctx, "partner registration telegram failed", err)
	}
}

// Get loads a partner by id.
func (s *PartnerService) Get(ctx context.Context, id uuid.UUID) (*models.DeliveryPartner, error) {
	var partner models.DeliveryPartner
	if err := s.db.WithContext(ctx).First(&partner, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "delivery partner not found")
		}
		return nil, apperr.Internal(err, "failed to load delivery partner")
	}
	return &partner, nil
}

// List returns the partners actor may manage, newest first.
func (s *PartnerService) List(ctx context.Context, actor authz.Actor, status models.PartnerStatus) ([]models.DeliveryPartner, error) {
	q := s.db.WithContext(ctx).
		Where("created_by_user = ? OR LOWER(admin_email) = ?", actor.EffectiveUserID(), actor.AdminEmail)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var partners []models.DeliveryPartner
	if err := q.Order("created_at DESC").Find(&partners).Error; err != nil {
		return nil, apperr.Internal(err, "failed to list delivery partners")
	}
	return partners, nil
}

func (s *PartnerService) authorize(ctx context.Context, id uuid.UUID, principal authz.Principal, action authz.Action) (*models.DeliveryPartner, context.Context, error) {
	partner, err := s.Get(ctx, id)
	if err != nil {
		return nil, ctx, err
	}

	decision := authz.CanManagePartner(partner, principal, action)
	ctx = s.log.WithFields(ctx, map[string]any{
		"partner_id": partner.ID.String(),
		"action":     string(action),
		"reason":     string(decision.Reason),
	})
	if !decision.Allowed {
		s.log.Warn(ctx, "partner action denied", nil)
		return nil, ctx, apperr.New(apperr.CodeForbidden, "not allowed to manage this delivery partner")
	}
	if decision.Reason == authz.ReasonSuperuser {
		s.log.Warn(ctx, "audit.superuser", nil)
	}
	return partner, ctx, nil
}

// Approve moves a pending partner to approved. A rejected partner has to
// register again before it can be approved.
func (s *PartnerService) Approve(ctx context.Context, id uuid.UUID, principal authz.Principal) (*models.DeliveryPartner, error) {
	partner, ctx, err := s.authorize(ctx, id, principal, authz.ActionApprove)
	if err != nil {
		return nil, err
	}
	if partner.Status != models.PartnerPending {
		return nil, apperr.New(apperr.CodeConflict, fmt.Sprintf("cannot approve a %s partner", partner.Status))
	}

	partner.Status = models.PartnerApproved
	if err := s.db.WithContext(ctx).Model(partner).Select("Status").Updates(partner).Error; err != nil {
		return nil, apperr.Internal(err, "failed to approve partner")
	}
	s.metrics.PartnerTransition(string(models.PartnerApproved))
	s.log.Info(ctx, "delivery partner approved")
	return partner, nil
}

// Reject moves a partner to rejected and tells them by mail. The session
// token is kept so the guard reports the revocation instead of an expiry.
func (s *PartnerService) Reject(ctx context.Context, id uuid.UUID, principal authz.Principal) (*models.DeliveryPartner, error) {
	partner, ctx, err := s.authorize(ctx, id, principal, authz.ActionReject)
	if err != nil {
		return nil, err
	}

	now := s.now()
	partner.Status = models.PartnerRejected
	partner.NotifiedAt = &now
	if err := s.db.WithContext(ctx).Model(partner).Select("Status", "NotifiedAt").Updates(partner).Error; err != nil {
		return nil, apperr.Internal(err, "failed to reject partner")
	}
	s.metrics.PartnerTransition(string(models.PartnerRejected))
	s.log.Info(ctx, "delivery partner rejected")

	mail := Mail{
		To:      partner.Email,
		Subject: "Delivery partner registration update",
		Text:    fmt.Sprintf("Hello %s, your delivery partner registration was not approved. You may register again.", partner.Name),
	}
	if err := s.mailer.Send(ctx, mail); err != nil {
		s.log.Warn(ctx, "partner rejection mail failed", err)
	}
	return partner, nil
}

// Delete removes the partner and its search history permanently.
func (s *PartnerService) Delete(ctx context.Context, id uuid.UUID, principal authz.Principal) error {
	partner, ctx, err := s.authorize(ctx, id, principal, authz.ActionDelete)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.DeliveryPartner{}, "id = ?", partner.ID).Error; err != nil {
		return apperr.Internal(err, "failed to delete partner")
	}
	if err := s.db.WithContext(ctx).Where("partner_id = ?", partner.ID).Delete(&models.SearchHistory{}).Error; err != nil {
		s.log.Warn(ctx, "partner search history cleanup failed", err)
	}
	s.log.Info(ctx, "delivery partner deleted")
	return nil
}

// RequestLoginOTP checks credentials and mails a fresh login code. When the
// same email is registered under several shops the approved record wins,
// unless createdBy narrows the lookup to one shop.
func (s *PartnerService) RequestLoginOTP(ctx context.Context, email, password string, createdBy *uuid.UUID) (*models.DeliveryPartner, error) {
	q := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email))
	if createdBy != nil {
		q = q.Where("created_by_user = ?", *createdBy)
	}

	var partner models.DeliveryPartner
	err := q.Order("CASE WHEN status = 'approved' THEN 0 ELSE 1 END").
		Order("updated_at DESC").
		First(&partner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "delivery partner not found")
		}
		return nil, apperr.Internal(err, "failed to look up partner")
	}

	if partner.Status != models.PartnerApproved {
		return nil, apperr.New(apperr.CodeForbidden, "delivery partner is not approved")
	}
	if !utils.CheckPassword(partner.PasswordHash, password) {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	}

	code, err := s.otp.Issue(otp.Fields(&partner.OTP, &partner.OTPExpires))
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&partner).Select("OTP", "OTPExpires").Updates(&partner).Error; err != nil {
		return nil, apperr.Internal(err, "failed to store otp")
	}
	s.metrics.OTPIssued(flowDeliveryLogin)

	if err := s.mailer.Send(ctx, otpMail(partner.Email, code, "delivery login")); err != nil {
		return nil, apperr.Wrap(apperr.CodeDependency, err, "failed to send otp email")
	}
	return &partner, nil
}

// VerifyLoginOTP consumes the login code and mints a session token that
// replaces any previous one.
func (s *PartnerService) VerifyLoginOTP(ctx context.Context, partnerID uuid.UUID, code string) (string, *models.DeliveryPartner, error) {
	partner, err := s.Get(ctx, partnerID)
	if err != nil {
		return "", nil, err
	}
	if partner.Status != models.PartnerApproved {
		return "", nil, apperr.New(apperr.CodeForbidden, "delivery partner is not approved")
	}

	var token string
	save := func() error {
		return s.db.WithContext(ctx).Model(partner).Select("OTP", "OTPExpires", "SessionToken").Updates(partner).Error
	}
	mint := func() error {
		t, err := utils.GenerateSessionToken()
		if err != nil {
			return apperr.Internal(err, "failed to generate session token")
		}
		token = t
		partner.SessionToken = &token
		return nil
	}

	err = s.otp.Verify(otp.Fields(&partner.OTP, &partner.OTPExpires), code, save, mint)
	s.metrics.OTPVerified(flowDeliveryLogin, verifyOutcome(err))
	if err != nil {
		return "", nil, err
	}
	return token, partner, nil
}

// Authenticate resolves a bearer token to an approved partner. Status is read
// on every call so approval changes take effect immediately.
func (s *PartnerService) Authenticate(ctx context.Context, token string) (*models.DeliveryPartner, error) {
	if token == "" {
		return nil, apperr.New(apperr.CodeUnauthorized, "missing session token")
	}

	var partner models.DeliveryPartner
	if err := s.db.WithContext(ctx).Where("session_token = ?", token).First(&partner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeUnauthorized, "session expired")
		}
		return nil, apperr.Internal(err, "failed to verify session")
	}
	if partner.Status != models.PartnerApproved {
		return nil, apperr.New(apperr.CodeForbidden, "access revoked")
	}
	return &partner, nil
}

// Logout drops the partner's session token.
func (s *PartnerService) Logout(ctx context.Context, partnerID uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&models.DeliveryPartner{}).
		Where("id = ?", partnerID).
		Update("session_token", nil).Error
	if err != nil {
		return apperr.Internal(err, "failed to log out")
	}
	return nil
}

// UpdateLocation stores the partner's latest position.
func (s *PartnerService) UpdateLocation(ctx context.Context, partnerID uuid.UUID, latitude, longitude float64) (*models.GeoPoint, error) {
	now := s.now()
	err := s.db.WithContext(ctx).Model(&models.DeliveryPartner{}).
		Where("id = ?", partnerID).
		Updates(map[string]any{
			"last_latitude":    latitude,
			"last_longitude":   longitude,
			"last_location_at": now,
		}).Error
	if err != nil {
		return nil, apperr.Internal(err, "failed to update location")
	}
	return &models.GeoPoint{Latitude: latitude, Longitude: longitude, UpdatedAt: now}, nil
}

func verifyOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if typed := apperr.As(err); typed != nil {
		return string(typed.Code())
	}
	return "error"
}
