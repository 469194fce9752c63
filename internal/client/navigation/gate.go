package navigation

import "github.com/go-auth-flow/internal/client/session"

// Stack is a group of screens reachable together.
type Stack string

const (
	StackAuth Stack = "Auth"
	StackMain Stack = "Main"
)

// Screen names a screen inside a stack.
type Screen string

const (
	ScreenLogin         Screen = "Login"
	ScreenSignup        Screen = "Signup"
	ScreenOtp           Screen = "Otp"
	ScreenDashboard     Screen = "Dashboard"
	ScreenThemeSettings Screen = "ThemeSettings"
)

// Screens lists the screens of s; the first one is the initial route.
func (s Stack) Screens() []Screen {
	switch s {
	case StackMain:
		return []Screen{ScreenDashboard, ScreenThemeSettings}
	default:
		return []Screen{ScreenLogin, ScreenSignup, ScreenOtp}
	}
}

// Initial returns the screen shown when s becomes visible.
func (s Stack) Initial() Screen { return s.Screens()[0] }

// Derive selects the visible stack from the session alone.
func Derive(s session.Session) Stack {
	if s.IsAuthenticated {
		return StackMain
	}
	return StackAuth
}

// Gate re-derives the visible stack on every store change and hands it to a
// callback. It keeps no decision of its own.
type Gate struct {
	unsubscribe func()
}

// Attach calls onChange with the current stack, then again after every
// applied action.
func Attach(store *session.Store, onChange func(Stack)) *Gate {
	g := &Gate{unsubscribe: store.Subscribe(func(s session.Session) {
		onChange(Derive(s))
	})}
	onChange(Derive(store.Session()))
	return g
}

// Detach stops notifications.
func (g *Gate) Detach() { g.unsubscribe() }
