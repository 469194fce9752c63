package session

import (
	"fmt"

	"github.com/go-auth-flow/internal/domain"
)

// Kind distinguishes asynchronous lifecycle actions from the synchronous ones.
type Kind int

const (
	KindAsync Kind = iota
	KindLogout
	KindClearError
	KindSetToken
)

// Action is a state-transition event applied to the Store.
type Action struct {
	Kind  Kind
	Op    Op
	Phase Phase
	// Generation is the store generation the request was issued under.
	Generation uint64
	User       *domain.PublicUser
	Token      string
	Error      string
}

// Pending marks op as in flight.
func Pending(op Op, gen uint64) Action {
	return Action{Kind: KindAsync, Op: op, Phase: PhasePending, Generation: gen}
}

// Fulfilled completes op successfully. User and token are only read by
// login, verifyOTP and getCurrentUser.
func Fulfilled(op Op, gen uint64, user *domain.PublicUser, token string) Action {
	return Action{Kind: KindAsync, Op: op, Phase: PhaseFulfilled, Generation: gen, User: user, Token: token}
}

// Rejected completes op with a user-facing error message.
func Rejected(op Op, gen uint64, msg string) Action {
	return Action{Kind: KindAsync, Op: op, Phase: PhaseRejected, Generation: gen, Error: msg}
}

// Logout resets the session to its initial empty state.
func Logout() Action { return Action{Kind: KindLogout} }

// ClearError drops the current error message.
func ClearError() Action { return Action{Kind: KindClearError} }

// SetToken records a token restored from storage. It does not authenticate;
// a getCurrentUser fulfillment does.
func SetToken(token string) Action { return Action{Kind: KindSetToken, Token: token} }

func (a Action) String() string {
	switch a.Kind {
	case KindLogout:
		return "auth/logout"
	case KindClearError:
		return "auth/clearError"
	case KindSetToken:
		return "auth/setToken"
	}
	return fmt.Sprintf("auth/%s/%s", a.Op, a.Phase)
}
