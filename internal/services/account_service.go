package services

import (
	"context"
	"errors"
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

// AccountRole selects which credential table an OTP flow targets.
type AccountRole string

const (
	RoleUser    AccountRole = "user"
	RoleManager AccountRole = "manager"
)

const (
	flowSignup        = "signup"
	flowPasswordReset = "password_reset"
)

// AccountService handles shop owner and manager credentials.
type AccountService struct {
	db        *gorm.DB
	otp       *otp.Policy
	mailer    Mailer
	log       *logger.Logger
	metrics   *metrics.Metrics
	jwtSecret string
	jwtTTL    time.Duration
}

// NewAccountService wires an AccountService.
func NewAccountService(db *gorm.DB, policy *otp.Policy, mailer Mailer, log *logger.Logger, m *metrics.Metrics, jwtSecret string, jwtTTL time.Duration) *AccountService {
	if log == nil {
		log = logger.Nop()
	}
	return &AccountService{
		db:        db,
		otp:       policy,
		mailer:    mailer,
		log:       log,
		metrics:   m,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

// Session is what a successful shop login returns.
type Session struct {
	Token   string          `json:"token"`
	Actor   authz.Actor     `json:"-"`
	User    *models.User    `json:"user,omitempty"`
	Manager *models.Manager `json:"manager,omitempty"`
}

// SignupInput is the shop owner registration payload.
type SignupInput struct {
	Name        string
	Email       string
	Contact     string
	ShopName    string
	ShopAddress string
	GSTIN       string
	Password    string
}

// Signup creates an unverified user and mails the verification code.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	email := utils.NormalizeEmail(in.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ? OR gstin = ?", email, in.GSTIN).
		Count(&count).Error; err != nil {
		return nil, apperr.Internal(err, "failed to check existing user")
	}
	if count > 0 {
		return nil, apperr.New(apperr.CodeConflict, "email or gstin already registered")
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:         in.Name,
		Email:        email,
		Contact:      in.Contact,
		ShopName:     in.ShopName,
		ShopAddress:  in.ShopAddress,
		GSTIN:        in.GSTIN,
		PasswordHash: hash,
	}
	code, err := s.otp.Issue(otp.Fields(&user.OTP, &user.OTPExpires))
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.New(apperr.CodeConflict, "email or gstin already registered")
		}
		return nil, apperr.Internal(err, "failed to create user")
	}
	s.metrics.OTPIssued(flowSignup)

	if err := s.mailer.Send(ctx, otpMail(user.Email, code, "verification")); err != nil {
		return nil, apperr.Wrap(apperr.CodeDependency, err, "failed to send verification email")
	}
	return &user, nil
}

// VerifySignup consumes the signup code and logs the user in.
func (s *AccountService) VerifySignup(ctx context.Context, email, code string) (*Session, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}

	save := func() error {
		return s.db.WithContext(ctx).Model(user).Select("OTP", "OTPExpires", "IsVerified").Updates(user).Error
	}
	markVerified := func() error {
		user.IsVerified = true
		return nil
	}
	err = s.otp.Verify(otp.Fields(&user.OTP, &user.OTPExpires), code, save, markVerified)
	s.metrics.OTPVerified(flowSignup, verifyOutcome(err))
	if err != nil {
		return nil, err
	}

	return s.session(authz.Admin(user.ID, user.Email), user, nil)
}

// RequestOTP issues a fresh code for the account. Users receive it both for
// pending verification and password resets; managers only for resets.
func (s *AccountService) RequestOTP(ctx context.Context, role AccountRole, email string) error {
	switch role {
	case RoleUser:
		user, err := s.findUser(ctx, email)
		if err != nil {
			return err
		}
		code, err := s.otp.Issue(otp.Fields(&user.OTP, &user.OTPExpires))
		if err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Model(user).Select("OTP", "OTPExpires").Updates(user).Error; err != nil {
			return apperr.Internal(err, "failed to store otp")
		}
		s.metrics.OTPIssued(flowPasswordReset)
		return s.sendOTP(ctx, user.Email, code)
	case RoleManager:
		manager, err := s.findManager(ctx, email)
		if err != nil {
			return err
		}
		code, err := s.otp.Issue(otp.Fields(&manager.OTP, &manager.OTPExpires))
		if err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Model(manager).Select("OTP", "OTPExpires").Updates(manager).Error; err != nil {
			return apperr.Internal(err, "failed to store otp")
		}
		s.metrics.OTPIssued(flowPasswordReset)
		return s.sendOTP(ctx, manager.Email, code)
	}
	return apperr.New(apperr.CodeValidation, "unknown role")
}

func (s *AccountService) sendOTP(ctx context.Context, to, code string) error {
	if err := s.mailer.Send(ctx, otpMail(to, code, "password reset")); err != nil {
		return apperr.Wrap(apperr.CodeDependency, err, "failed to send otp email")
	}
	return nil
}

// ResetPassword consumes the code and stores the new password.
func (s *AccountService) ResetPassword(ctx context.Context, role AccountRole, email, code, newPassword string) error {
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	switch role {
	case RoleUser:
		user, err := s.findUser(ctx, email)
		if err != nil {
			return err
		}
		save := func() error {
			return s.db.WithContext(ctx).Model(user).Select("OTP", "OTPExpires", "PasswordHash").Updates(user).Error
		}
		err = s.otp.Verify(otp.Fields(&user.OTP, &user.OTPExpires), code, save, func() error {
			user.PasswordHash = hash
			return nil
		})
		s.metrics.OTPVerified(flowPasswordReset, verifyOutcome(err))
		return err
	case RoleManager:
		manager, err := s.findManager(ctx, email)
		if err != nil {
			return err
		}
		save := func() error {
			return s.db.WithContext(ctx).Model(manager).Select("OTP", "OTPExpires", "PasswordHash").Updates(manager).Error
		}
		err = s.otp.Verify(otp.Fields(&manager.OTP, &manager.OTPExpires), code, save, func() error {
			manager.PasswordHash = hash
			return nil
		})
		s.metrics.OTPVerified(flowPasswordReset, verifyOutcome(err))
		return err
	}
	return apperr.New(apperr.CodeValidation, "unknown role")
}

// Login authenticates a shop owner, falling back to managers. A manager's
// session acts with its admin's identity.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.findUser(ctx, email)
	switch {
	case err == nil:
		if !utils.CheckPassword(user.PasswordHash, password) {
			return nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
		}
		if !user.IsVerified {
			return nil, apperr.New(apperr.CodeForbidden, "email not verified")
		}
		return s.session(authz.Admin(user.ID, user.Email), user, nil)
	case !apperr.Is(err, apperr.CodeNotFound):
		return nil, err
	}

	manager, err := s.findManager(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}
	if !utils.CheckPassword(manager.PasswordHash, password) {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	}

	var admin models.User
	if err := s.db.WithContext(ctx).First(&admin, "id = ?", manager.AdminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeForbidden, "manager's admin account no longer exists")
		}
		return nil, apperr.Internal(err, "failed to load admin")
	}
	return s.session(authz.ManagerActingAsAdmin(admin.ID, admin.Email, manager.ID), &admin, manager)
}

// CreateManager adds a manager under the acting admin.
func (s *AccountService) CreateManager(ctx context.Context, actor authz.Actor, name, email, password string) (*models.Manager, error) {
	if actor.IsManager() {
		return nil, apperr.New(apperr.CodeForbidden, "managers cannot manage managers")
	}
	email = utils.NormalizeEmail(email)

	var users, managers int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&users).Error; err != nil {
		return nil, apperr.Internal(err, "failed to check email")
	}
	if err := s.db.WithContext(ctx).Model(&models.Manager{}).Where("email = ?", email).Count(&managers).Error; err != nil {
		return nil, apperr.Internal(err, "failed to check email")
	}
	if users+managers > 0 {
		return nil, apperr.New(apperr.CodeConflict, "email already in use")
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	manager := models.Manager{
		AdminID:      actor.EffectiveUserID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(&manager).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.New(apperr.CodeConflict, "email already in use")
		}
		return nil, apperr.Internal(err, "failed to create manager")
	}
	return &manager, nil
}

// ListManagers returns the admin's managers.
func (s *AccountService) ListManagers(ctx context.Context, actor authz.Actor) ([]models.Manager, error) {
	var managers []models.Manager
	if err := s.db.WithContext(ctx).
		Where("admin_id = ?", actor.EffectiveUserID()).
		Order("created_at DESC").
		Find(&managers).Error; err != nil {
		return nil, apperr.Internal(err, "failed to list managers")
	}
	return managers, nil
}

// DeleteManager removes one of the admin's managers.
func (s *AccountService) DeleteManager(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if actor.IsManager() {
		return apperr.New(apperr.CodeForbidden, "managers cannot manage managers")
	}
	res := s.db.WithContext(ctx).Where("id = ? AND admin_id = ?", id, actor.EffectiveUserID()).Delete(&models.Manager{})
	if res.Error != nil {
		return apperr.Internal(res.Error, "failed to delete manager")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.CodeNotFound, "manager not found")
	}
	return nil
}

func (s *AccountService) session(actor authz.Actor, user *models.User, manager *models.Manager) (*Session, error) {
	token, err := utils.GenerateToken(s.jwtSecret, actor, s.jwtTTL)
	if err != nil {
		return nil, apperr.Internal(err, "failed to generate token")
	}
	return &Session{Token: token, Actor: actor, User: user, Manager: manager}, nil
}

func (s *AccountService) hash(password string) (string, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooShort) {
			return "", apperr.New(apperr.CodeValidation, err.Error())
		}
		return "", apperr.Internal(err, "failed to hash password")
	}
	return hash, nil
}

func (s *AccountService) findUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "user not found")
		}
		return nil, apperr.Internal(err, "failed to load user")
	}
	return &user, nil
}

func (s *AccountService) findManager(ctx context.Context, email string) (*models.Manager, error) {
	var manager models.Manager
	if err := s.db.WithContext(ctx).Where("email = ?", utils.NormalizeEmail(email)).First(&manager).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "manager not found")
		}
		return nil, apperr.Internal(err, "failed to load manager")
	}
	return &manager, nil
}
