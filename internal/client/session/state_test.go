package session

import (
	"testing"

	"github.com/go-auth-flow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *domain.PublicUser {
	return &domain.PublicUser{ID: "1", Email: "a@b.co", Name: "A"}
}

func authenticated() State {
	st := Reduce(State{}, Pending(OpLogin, 0))
	return Reduce(st, Fulfilled(OpLogin, 0, testUser(), "tok"))
}

func assertInvariant(t *testing.T, s Session) {
	t.Helper()
	assert.Equal(t, s.Token != "" && s.User != nil, s.IsAuthenticated)
}

func TestLoginPending(t *testing.T) {
	st := Reduce(State{Session: Session{Error: "old"}}, Pending(OpLogin, 0))
	assert.True(t, st.Session.IsLoading())
	assert.True(t, st.Session.IsPending(OpLogin))
	assert.Empty(t, st.Session.Error)
}

func TestLoginFulfilled(t *testing.T) {
	st := authenticated()
	s := st.Session
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, "tok", s.Token)
	require.NotNil(t, s.User)
	assert.Equal(t, "1", s.User.ID)
	assert.Empty(t, s.Error)
	assert.False(t, s.IsLoading())
	assertInvariant(t, s)
}

func TestLoginRejected_KeepsIdentity(t *testing.T) {
	st := authenticated()
	st = Reduce(st, Pending(OpLogin, 0))
	st = Reduce(st, Rejected(OpLogin, 0, "Invalid email or password"))

	assert.Equal(t, "Invalid email or password", st.Session.Error)
	assert.False(t, st.Session.IsLoading())
	assert.True(t, st.Session.IsAuthenticated)
	assert.Equal(t, "tok", st.Session.Token)
}

func TestSignupFulfilled_DoesNotAuthenticate(t *testing.T) {
	st := Reduce(State{}, Pending(OpSignup, 0))
	st = Reduce(st, Fulfilled(OpSignup, 0, testUser(), "ignored"))

	assert.Equal(t, Session{}, st.Session)
}

func TestVerifyOTPFulfilled_Authenticates(t *testing.T) {
	st := Reduce(State{}, Pending(OpVerifyOTP, 0))
	st = Reduce(st, Fulfilled(OpVerifyOTP, 0, testUser(), "tok"))

	assert.True(t, st.Session.IsAuthenticated)
	assert.Equal(t, "tok", st.Session.Token)
	assertInvariant(t, st.Session)
}

func TestResendOTP_OnlyTouchesLoadingAndError(t *testing.T) {
	before := authenticated()
	st := Reduce(before, Pending(OpResendOTP, 0))
	assert.True(t, st.Session.IsPending(OpResendOTP))

	rejected := Reduce(st, Rejected(OpResendOTP, 0, "Please wait"))
	assert.Equal(t, "Please wait", rejected.Session.Error)
	assert.Equal(t, before.Session.User, rejected.Session.User)
	assert.Equal(t, before.Session.Token, rejected.Session.Token)

	fulfilled := Reduce(st, Fulfilled(OpResendOTP, 0, nil, ""))
	assert.Equal(t, before.Session, fulfilled.Session)
}

func TestGetCurrentUserFulfilled(t *testing.T) {
	st := Reduce(State{}, SetToken("tok"))
	assert.False(t, st.Session.IsAuthenticated)
	assertInvariant(t, st.Session)

	st = Reduce(st, Pending(OpGetCurrentUser, 0))
	st = Reduce(st, Fulfilled(OpGetCurrentUser, 0, testUser(), "tok"))
	assert.True(t, st.Session.IsAuthenticated)
	assert.Equal(t, "tok", st.Session.Token)
	assertInvariant(t, st.Session)
}

func TestGetCurrentUserRejected_ClearsToken(t *testing.T) {
	st := authenticated()
	st = Reduce(st, Pending(OpGetCurrentUser, 0))
	st = Reduce(st, Rejected(OpGetCurrentUser, 0, "invalid or expired token"))

	s := st.Session
	assert.False(t, s.IsAuthenticated)
	assert.Empty(t, s.Token)
	assert.Nil(t, s.User)
	assert.Equal(t, "invalid or expired token", s.Error)
	assertInvariant(t, s)
}

func TestLogout_IsIdempotentAndResets(t *testing.T) {
	for _, st := range []State{
		{},
		authenticated(),
		Reduce(State{}, Pending(OpLogin, 0)),
		Reduce(Reduce(State{}, Pending(OpLogin, 0)), Rejected(OpLogin, 0, "boom")),
	} {
		once := Reduce(st, Logout())
		twice := Reduce(once, Logout())
		assert.Equal(t, Session{}, once.Session)
		assert.Equal(t, once.Session, twice.Session)
		assert.Greater(t, once.Generation, st.Generation)
	}
}

func TestClearError(t *testing.T) {
	st := Reduce(State{Session: Session{Error: "x"}}, ClearError())
	assert.Empty(t, st.Session.Error)
}

func TestStaleCompletionIsDiscarded(t *testing.T) {
	st := Reduce(State{}, Pending(OpLogin, 0))
	st = Reduce(st, Logout())
	late := Reduce(st, Fulfilled(OpLogin, 0, testUser(), "tok"))

	assert.Equal(t, st, late)
	assert.False(t, late.Session.IsAuthenticated)
}

func TestOverlappingOperationsKeepSeparateLoading(t *testing.T) {
	st := Reduce(State{}, Pending(OpLogin, 0))
	st = Reduce(st, Pending(OpResendOTP, 0))
	st = Reduce(st, Fulfilled(OpResendOTP, 0, nil, ""))

	assert.True(t, st.Session.IsLoading())
	assert.True(t, st.Session.IsPending(OpLogin))
	assert.False(t, st.Session.IsPending(OpResendOTP))
}

func TestOverlappingCallsOfSameOperation(t *testing.T) {
	st := Reduce(State{}, Pending(OpResendOTP, 0))
	st = Reduce(st, Pending(OpResendOTP, 0))

	st = Reduce(st, Rejected(OpResendOTP, 0, "Failed to resend OTP"))
	assert.True(t, st.Session.IsPending(OpResendOTP), "second call is still in flight")

	st = Reduce(st, Fulfilled(OpResendOTP, 0, nil, ""))
	assert.False(t, st.Session.IsLoading())
	assert.Nil(t, st.Session.Pending)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	st := Reduce(State{}, Pending(OpLogin, 0))
	_ = Reduce(st, Fulfilled(OpLogin, 0, testUser(), "tok"))
	assert.True(t, st.Session.IsPending(OpLogin))
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "auth/login/pending", Pending(OpLogin, 0).String())
	assert.Equal(t, "auth/getCurrentUser/rejected", Rejected(OpGetCurrentUser, 0, "").String())
	assert.Equal(t, "auth/logout", Logout().String())
}
