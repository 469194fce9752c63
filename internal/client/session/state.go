package session

import (
	"fmt"

	"github.com/go-auth-flow/internal/domain"
)

// Op names an asynchronous auth operation.
type Op string

const (
	OpLogin          Op = "login"
	OpSignup         Op = "signup"
	OpVerifyOTP      Op = "verifyOTP"
	OpResendOTP      Op = "resendOTP"
	OpGetCurrentUser Op = "getCurrentUser"
)

// Phase is the lifecycle step of an asynchronous operation.
type Phase int

const (
	PhasePending Phase = iota
	PhaseFulfilled
	PhaseRejected
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseFulfilled:
		return "fulfilled"
	case PhaseRejected:
		return "rejected"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Session is the in-memory record of the current identity and its
// loading/error status. IsAuthenticated holds iff Token != "" and User != nil.
type Session struct {
	User            *domain.PublicUser
	Token           string
	IsAuthenticated bool
	// Pending counts the requests in flight per operation. Overlapping calls
	// of the same operation each hold their own count. It is nil when none are.
	Pending map[Op]int
	Error   string
}

// IsLoading reports whether any operation is in flight.
func (s Session) IsLoading() bool { return len(s.Pending) > 0 }

// IsPending reports whether op is in flight.
func (s Session) IsPending(op Op) bool { return s.Pending[op] > 0 }

func (s Session) clone() Session {
	if s.Pending != nil {
		p := make(map[Op]int, len(s.Pending))
		for k, v := range s.Pending {
			p[k] = v
		}
		s.Pending = p
	}
	return s
}

func (s *Session) setPending(op Op) {
	if s.Pending == nil {
		s.Pending = make(map[Op]int, 1)
	}
	s.Pending[op]++
}

func (s *Session) clearPending(op Op) {
	if s.Pending[op] > 1 {
		s.Pending[op]--
		return
	}
	delete(s.Pending, op)
	if len(s.Pending) == 0 {
		s.Pending = nil
	}
}

func (s *Session) authenticate(user *domain.PublicUser, token string) {
	s.User = user
	if token != "" {
		s.Token = token
	}
	s.IsAuthenticated = s.Token != "" && s.User != nil
}

// State is what the Store holds: the Session plus the generation counter that
// logout advances. Results of requests issued under an older generation are
// discarded.
type State struct {
	Session    Session
	Generation uint64
}

// Accepts reports whether a would be applied to st. Completions stamped with a
// generation other than the current one are stale.
func (st State) Accepts(a Action) bool {
	if a.Kind != KindAsync {
		return true
	}
	return a.Generation == st.Generation
}

// Reduce is the pure transition function from (state, action) to the next state.
func Reduce(st State, a Action) State {
	if !st.Accepts(a) {
		return st
	}

	next := State{Session: st.Session.clone(), Generation: st.Generation}
	s := &next.Session

	switch a.Kind {
	case KindLogout:
		return State{Generation: st.Generation + 1}
	case KindClearError:
		s.Error = ""
	case KindSetToken:
		s.Token = a.Token
		s.IsAuthenticated = s.Token != "" && s.User != nil
	case KindAsync:
		reduceAsync(s, a)
	}
	return next
}

func reduceAsync(s *Session, a Action) {
	switch a.Phase {
	case PhasePending:
		s.setPending(a.Op)
		s.Error = ""
	case PhaseRejected:
		s.clearPending(a.Op)
		s.Error = a.Error
		if a.Op == OpGetCurrentUser {
			// The stored token is invalid or expired.
			s.User = nil
			s.Token = ""
			s.IsAuthenticated = false
		}
	case PhaseFulfilled:
		s.clearPending(a.Op)
		s.Error = ""
		switch a.Op {
		case OpLogin, OpVerifyOTP, OpGetCurrentUser:
			s.authenticate(a.User, a.Token)
		case OpSignup, OpResendOTP:
			// identity is unchanged; signup still needs its OTP verified
		}
	}
}
