package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-flow/internal/domain"
	"github.com/go-auth-flow/internal/pkg/id"
	"github.com/go-auth-flow/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// User-facing messages returned by the service.
const (
	MsgUserExists         = "User already exists"
	MsgInvalidCredentials = "Invalid email or password"
	MsgEmailNotVerified   = "Please verify your email before logging in"
	MsgAccountDisabled    = "Account is disabled"
	MsgInvalidOTP         = "Invalid or expired OTP"
	MsgResendTooSoon      = "Please wait before requesting another OTP"
	MsgAlreadyVerified    = "Email is already verified"
	MsgUserNotFound       = "User not found"
	MsgSessionExpired     = "Session expired, please log in again"
)

const defaultOTPTTL = 10 * time.Minute

type Service interface {
	Signup(ctx context.Context, req domain.SignupCredentials) (*domain.SignupResult, error)
	Login(ctx context.Context, req domain.LoginCredentials) (*domain.AuthResult, error)
	VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.AuthResult, error)
	ResendOTP(ctx context.Context, req domain.ResendOTPRequest) error
	Me(ctx context.Context, userID, sessionID string) (*domain.PublicUser, error)
	Logout(ctx context.Context, userID, sessionID string) error
}

type UserStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	MarkEmailVerified(ctx context.Context, userID string) error
}

type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Disable(ctx context.Context, sessionID string) error
}

type VerificationStore interface {
	Put(ctx context.Context, v *domain.UserVerification) error
	Get(ctx context.Context, userID string, typ domain.OTPType) (*domain.UserVerification, error)
	Delete(ctx context.Context, userID string, typ domain.OTPType) error
}

type Mailer interface {
	SendEmail(to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type TokenSigner interface {
	Sign(userID, sessionID string) (string, error)
}

// Cooldown gates how often an OTP may be issued per key.
type Cooldown interface {
	Acquire(ctx context.Context, key string) (bool, time.Duration, error)
	Release(ctx context.Context, key string) error
}

// ServiceDeps holds the collaborators of the auth service. SMSSender and
// Cooldown are optional.
type ServiceDeps struct {
	UserRepo         UserStore
	SessionRepo      SessionStore
	VerificationRepo VerificationStore
	Mailer           Mailer
	SMSSender        SMSSender
	JWTProvider      TokenSigner
	Cooldown         Cooldown
	OTPTTL           time.Duration
}

type service struct {
	users         UserStore
	sessions      SessionStore
	verifications VerificationStore
	mailer        Mailer
	sms           SMSSender
	signer        TokenSigner
	cooldown      Cooldown
	otpTTL        time.Duration
}

func NewService(deps ServiceDeps) Service {
	ttl := deps.OTPTTL
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	return &service{
		users:         deps.UserRepo,
		sessions:      deps.SessionRepo,
		verifications: deps.VerificationRepo,
		mailer:        deps.Mailer,
		sms:           deps.SMSSender,
		signer:        deps.JWTProvider,
		cooldown:      deps.Cooldown,
		otpTTL:        ttl,
	}
}

func (s *service) Signup(ctx context.Context, req domain.SignupCredentials) (*domain.SignupResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case err == nil && existing != nil:
		return nil, domain.NewError(domain.ErrConflict, MsgUserExists)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.NewError(domain.ErrConflict, MsgUserExists)
		}
		return nil, fmt.Errorf("store user: %w", err)
	}

	// The account exists from here on; a failed delivery is recoverable through resend.
	if err := s.issueOTP(ctx, u, domain.OTPTypeSignup); err != nil {
		slog.Warn("failed to issue signup OTP", "user_id", u.UserID, "err", err)
	}

	return &domain.SignupResult{
		UserID:          u.UserID,
		Email:           u.Email,
		Name:            u.Name,
		IsEmailVerified: u.IsEmailVerified,
	}, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginCredentials) (*domain.AuthResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.ErrUnauthorized, MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, domain.NewError(domain.ErrUnauthorized, MsgInvalidCredentials)
	}
	if !u.Enable {
		return nil, domain.NewError(domain.ErrForbidden, MsgAccountDisabled)
	}
	if !u.IsEmailVerified {
		return nil, domain.NewError(domain.ErrForbidden, MsgEmailNotVerified)
	}

	return s.startSession(ctx, u)
}

func (s *service) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.AuthResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	typ := req.Type.OrDefault()

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.ErrBadRequest, MsgInvalidOTP)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	v, err := s.verifications.Get(ctx, u.UserID, typ)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.ErrBadRequest, MsgInvalidOTP)
		}
		return nil, fmt.Errorf("load OTP: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(v.Code), []byte(req.OTP)) != 1 || v.ExpiresAt < time.Now().Unix() {
		return nil, domain.NewError(domain.ErrBadRequest, MsgInvalidOTP)
	}
	if err := s.verifications.Delete(ctx, u.UserID, typ); err != nil {
		slog.Warn("failed to delete OTP verification record", "user_id", u.UserID, "type", typ, "err", err)
	}

	if !u.Enable {
		return nil, domain.NewError(domain.ErrForbidden, MsgAccountDisabled)
	}
	if !u.IsEmailVerified {
		if err := s.users.MarkEmailVerified(ctx, u.UserID); err != nil {
			return nil, fmt.Errorf("mark email verified: %w", err)
		}
		u.IsEmailVerified = true
	}

	return s.startSession(ctx, u)
}

func (s *service) ResendOTP(ctx context.Context, req domain.ResendOTPRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	typ := req.Type.OrDefault()

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewError(domain.ErrNotFound, MsgUserNotFound)
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if typ == domain.OTPTypeSignup && u.IsEmailVerified {
		return domain.NewError(domain.ErrBadRequest, MsgAlreadyVerified)
	}

	return s.issueOTP(ctx, u, typ)
}

func (s *service) Me(ctx context.Context, userID, sessionID string) (*domain.PublicUser, error) {
	if err := s.checkSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.ErrUnauthorized, MsgSessionExpired)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u.Public(), nil
}

func (s *service) Logout(ctx context.Context, userID, sessionID string) error {
	if err := s.checkSession(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.sessions.Disable(ctx, sessionID); err != nil {
		return fmt.Errorf("disable session: %w", err)
	}
	return nil
}

// checkSession ensures the session named by a bearer token is still active and
// belongs to userID.
func (s *service) checkSession(ctx context.Context, userID, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewError(domain.ErrUnauthorized, MsgSessionExpired)
		}
		return fmt.Errorf("load session: %w", err)
	}
	if !sess.Enable || sess.UserID != userID {
		return domain.NewError(domain.ErrUnauthorized, MsgSessionExpired)
	}
	return nil
}

func (s *service) startSession(ctx context.Context, u *domain.User) (*domain.AuthResult, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID: id.New(),
		UserID:    u.UserID,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	token, err := s.signer.Sign(u.UserID, sess.SessionID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &domain.AuthResult{Token: token, User: u.Public()}, nil
}

// issueOTP stores a fresh code for (u, typ) and delivers it by email, and by
// SMS when the user registered a phone. It is refused while the cooldown of
// the pair is running.
func (s *service) issueOTP(ctx context.Context, u *domain.User, typ domain.OTPType) error {
	key := u.UserID + ":" + string(typ)
	if s.cooldown != nil {
		ok, left, err := s.cooldown.Acquire(ctx, key)
		if err != nil {
			return fmt.Errorf("acquire OTP cooldown: %w", err)
		}
		if !ok {
			slog.Info("OTP resend refused", "user_id", u.UserID, "type", typ, "retry_in", left)
			return domain.NewError(domain.ErrTooManyRequests, MsgResendTooSoon)
		}
	}

	if err := s.deliverOTP(ctx, u, typ); err != nil {
		if s.cooldown != nil {
			if rErr := s.cooldown.Release(ctx, key); rErr != nil {
				slog.Warn("failed to release OTP cooldown", "user_id", u.UserID, "err", rErr)
			}
		}
		return err
	}
	return nil
}

func (s *service) deliverOTP(ctx context.Context, u *domain.User, typ domain.OTPType) error {
	code, err := id.OTP()
	if err != nil {
		return fmt.Errorf("generate OTP: %w", err)
	}
	v := &domain.UserVerification{
		UserID:    u.UserID,
		Type:      typ,
		Code:      code,
		ExpiresAt: time.Now().Add(s.otpTTL).Unix(),
	}
	if err := s.verifications.Put(ctx, v); err != nil {
		return fmt.Errorf("store OTP: %w", err)
	}

	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(s.otpTTL.Minutes()))
	if err := s.mailer.SendEmail(u.Email, "Your verification code", body); err != nil {
		return fmt.Errorf("send OTP email: %w", err)
	}
	if s.sms != nil && u.Phone != nil && *u.Phone != "" {
		if err := s.sms.SendSMS(ctx, *u.Phone, body); err != nil {
			slog.Warn("failed to send OTP SMS", "user_id", u.UserID, "err", err)
		}
	}
	return nil
}
