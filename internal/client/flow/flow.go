package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-auth-flow/internal/client/authapi"
	"github.com/go-auth-flow/internal/client/otp"
	"github.com/go-auth-flow/internal/client/session"
	"github.com/go-auth-flow/internal/domain"
	"github.com/go-auth-flow/internal/pkg/validate"
)

var (
	// ErrSuperseded is returned when a request completed after the session was
	// reset; its result was discarded.
	ErrSuperseded = errors.New("session was reset while the request was in flight")

	// ErrCooldown is returned when a resend is attempted before the cooldown ends.
	ErrCooldown = errors.New("resend not available yet")
)

// API is the remote auth service as seen by the flow.
type API interface {
	Login(ctx context.Context, creds domain.LoginCredentials) (*domain.AuthResult, error)
	Signup(ctx context.Context, creds domain.SignupCredentials) (*domain.SignupResult, error)
	VerifyOTP(ctx context.Context, email, code string, typ domain.OTPType) (*domain.AuthResult, error)
	ResendOTP(ctx context.Context, email string, typ domain.OTPType) error
	GetCurrentUser(ctx context.Context, token string) (*domain.PublicUser, error)
	Logout(ctx context.Context, token string) error
}

// TokenStore persists the bearer token across process restarts.
type TokenStore interface {
	// Load returns "" when no token is stored.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Delete(ctx context.Context) error
}

// ValidationError blocks a submission before it reaches the network.
type ValidationError struct {
	Fields validate.FieldErrors
}

func (e *ValidationError) Error() string { return e.Fields.String() }

// fallbacks are stored on the session when a request fails without a
// server-supplied message.
var fallbacks = map[session.Op]string{
	session.OpLogin:          authapi.MsgLoginFailed,
	session.OpSignup:         authapi.MsgSignupFailed,
	session.OpVerifyOTP:      authapi.MsgVerifyFailed,
	session.OpResendOTP:      authapi.MsgResendFailed,
	session.OpGetCurrentUser: authapi.MsgGetUserFailed,
}

// Flow runs each user action as pending -> API call -> fulfilled | rejected
// against the Store.
type Flow struct {
	store  *session.Store
	api    API
	tokens TokenStore
	log    *slog.Logger
}

// New builds a Flow. tokens may be nil, in which case the session lives in
// memory only.
func New(store *session.Store, api API, tokens TokenStore) *Flow {
	return &Flow{
		store:  store,
		api:    api,
		tokens: tokens,
		log:    slog.Default().With("component", "flow"),
	}
}

// Store returns the session store the flow dispatches to.
func (f *Flow) Store() *session.Store { return f.store }

// Login validates creds and signs in.
func (f *Flow) Login(ctx context.Context, creds domain.LoginCredentials) error {
	if fe := validate.Login(creds); !fe.Empty() {
		return &ValidationError{Fields: fe}
	}

	gen := f.store.Begin(session.OpLogin)
	res, err := f.api.Login(ctx, creds)
	if err != nil {
		return f.reject(session.OpLogin, gen, err)
	}
	return f.authenticated(ctx, session.OpLogin, gen, res)
}

// Signup validates creds and registers the account. On success it returns the
// challenge the OTP step must answer; the session stays unauthenticated.
func (f *Flow) Signup(ctx context.Context, creds domain.SignupCredentials) (*otp.Challenge, error) {
	if fe := validate.Signup(creds); !fe.Empty() {
		return nil, &ValidationError{Fields: fe}
	}

	gen := f.store.Begin(session.OpSignup)
	if _, err := f.api.Signup(ctx, creds); err != nil {
		return nil, f.reject(session.OpSignup, gen, err)
	}
	if !f.store.Dispatch(session.Fulfilled(session.OpSignup, gen, nil, "")) {
		return nil, ErrSuperseded
	}
	return &otp.Challenge{Email: creds.Email, Type: domain.OTPTypeSignup}, nil
}

// VerifyOTP answers ch with code. Success authenticates the session.
func (f *Flow) VerifyOTP(ctx context.Context, ch otp.Challenge, code string) error {
	if msg := validate.OTP(code); msg != "" {
		return &ValidationError{Fields: validate.FieldErrors{"otp": msg}}
	}

	gen := f.store.Begin(session.OpVerifyOTP)
	res, err := f.api.VerifyOTP(ctx, ch.Email, code, ch.Type.OrDefault())
	if err != nil {
		return f.reject(session.OpVerifyOTP, gen, err)
	}
	return f.authenticated(ctx, session.OpVerifyOTP, gen, res)
}

// ResendOTP requests a new code for ch. When cd is non-nil the resend is only
// allowed once it reached zero, and it is reset on success.
func (f *Flow) ResendOTP(ctx context.Context, ch otp.Challenge, cd *otp.Cooldown) error {
	if cd != nil && !cd.CanResend() {
		return fmt.Errorf("%w: %d seconds left", ErrCooldown, cd.Remaining())
	}

	gen := f.store.Begin(session.OpResendOTP)
	if err := f.api.ResendOTP(ctx, ch.Email, ch.Type.OrDefault()); err != nil {
		return f.reject(session.OpResendOTP, gen, err)
	}
	if !f.store.Dispatch(session.Fulfilled(session.OpResendOTP, gen, nil, "")) {
		return ErrSuperseded
	}
	if cd != nil {
		cd.Reset()
	}
	return nil
}

// GetCurrentUser refreshes the user behind token. Failure demotes the session
// to anonymous and forgets the persisted token.
func (f *Flow) GetCurrentUser(ctx context.Context, token string) error {
	gen := f.store.Begin(session.OpGetCurrentUser)
	user, err := f.api.GetCurrentUser(ctx, token)
	if err != nil {
		rejectErr := f.reject(session.OpGetCurrentUser, gen, err)
		if !errors.Is(rejectErr, ErrSuperseded) {
			f.forgetToken(ctx)
		}
		return rejectErr
	}
	if !f.store.Dispatch(session.Fulfilled(session.OpGetCurrentUser, gen, user, token)) {
		return ErrSuperseded
	}
	return nil
}

// Restore loads a persisted token, if any, and validates it with the service.
// It is a no-op without a token store or a stored token.
func (f *Flow) Restore(ctx context.Context) error {
	if f.tokens == nil {
		return nil
	}
	token, err := f.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		return nil
	}
	f.store.Dispatch(session.SetToken(token))
	return f.GetCurrentUser(ctx, token)
}

// Logout resets the session immediately. Requests still in flight are
// discarded when they complete. The server-side session is disabled on a
// best-effort basis.
func (f *Flow) Logout(ctx context.Context) error {
	token := f.store.Session().Token
	f.store.Dispatch(session.Logout())

	var err error
	if f.tokens != nil {
		if dErr := f.tokens.Delete(ctx); dErr != nil {
			err = fmt.Errorf("delete token: %w", dErr)
		}
	}
	if token != "" {
		if lErr := f.api.Logout(ctx, token); lErr != nil {
			f.log.WarnContext(ctx, "server logout failed", "err", lErr)
		}
	}
	return err
}

// ClearError drops the error currently shown.
func (f *Flow) ClearError() { f.store.Dispatch(session.ClearError()) }

func (f *Flow) authenticated(ctx context.Context, op session.Op, gen uint64, res *domain.AuthResult) error {
	if !f.store.Dispatch(session.Fulfilled(op, gen, res.User, res.Token)) {
		return ErrSuperseded
	}
	if f.tokens != nil {
		if err := f.tokens.Save(ctx, res.Token); err != nil {
			f.log.WarnContext(ctx, "could not persist token", "err", err)
		}
	}
	return nil
}

// reject records err on the session and returns it. Server messages are kept
// verbatim; transport failures show the operation's fallback message.
func (f *Flow) reject(op session.Op, gen uint64, err error) error {
	msg := fallbacks[op]
	var apiErr *authapi.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	if !f.store.Dispatch(session.Rejected(op, gen, msg)) {
		return errors.Join(ErrSuperseded, err)
	}
	return err
}

func (f *Flow) forgetToken(ctx context.Context) {
	if f.tokens == nil {
		return
	}
	if err := f.tokens.Delete(ctx); err != nil {
		f.log.WarnContext(ctx, "could not delete token", "err", err)
	}
}
