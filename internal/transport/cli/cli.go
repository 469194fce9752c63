// Package cli exposes the client auth flow as cobra commands. It plays the part
// of the app's screens: prompts stand in for inputs and the navigation gate
// decides which stack is printed.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-auth-flow/internal/client/flow"
	"github.com/go-auth-flow/internal/client/navigation"
	"github.com/go-auth-flow/internal/client/otp"
	"github.com/go-auth-flow/internal/client/theme"
	"github.com/go-auth-flow/internal/domain"
	"github.com/spf13/cobra"
)

// ThemeStore persists the appearance preference.
type ThemeStore interface {
	LoadTheme(ctx context.Context) (string, error)
	SaveTheme(ctx context.Context, theme string) error
}

// App is what the commands run against.
type App struct {
	Flow *flow.Flow
	In   io.Reader
	Out  io.Writer
	// Prefs is optional; without it the theme resets on every run.
	Prefs ThemeStore
	// TickInterval is the cooldown step; one second unless overridden.
	TickInterval time.Duration
	// CooldownTicks is the resend cooldown length; otp.DefaultCooldown when zero.
	CooldownTicks int

	in    *bufio.Reader
	theme theme.Mode
}

func (a *App) reader() *bufio.Reader {
	if a.in == nil {
		a.in = bufio.NewReader(a.In)
	}
	return a.in
}

func (a *App) tick() time.Duration {
	if a.TickInterval <= 0 {
		return time.Second
	}
	return a.TickInterval
}

// prompt returns def when non-empty, otherwise asks for a line on In.
func (a *App) prompt(label, def string) (string, error) {
	if def != "" {
		return def, nil
	}
	fmt.Fprintf(a.Out, "%s: ", label)
	line, err := a.reader().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// NewRootCommand builds the authcli command tree around app. A persisted
// session is restored before any command runs.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "authcli",
		Short:         "Sign up, verify and log in against the auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.Flow.Restore(cmd.Context()); err != nil {
				fmt.Fprintf(app.Out, "Stored session discarded: %v\n", report(app, err))
			}
			return nil
		},
	}

	root.AddCommand(
		newLoginCommand(app),
		newSignupCommand(app),
		newVerifyCommand(app),
		newResendCommand(app),
		newWhoamiCommand(app),
		newLogoutCommand(app),
		newThemeCommand(app),
	)
	return root
}

// watchNavigation prints the visible stack whenever it changes.
func watchNavigation(a *App) func() {
	last := navigation.Derive(a.Flow.Store().Session())
	g := navigation.Attach(a.Flow.Store(), func(s navigation.Stack) {
		if s == last {
			return
		}
		last = s
		fmt.Fprintf(a.Out, "-> %s stack (%s)\n", s, s.Initial())
	})
	return g.Detach
}

// report turns a flow error into what the user reads.
func report(a *App, err error) error {
	var ve *flow.ValidationError
	if errors.As(err, &ve) {
		keys := make([]string, 0, len(ve.Fields))
		for k := range ve.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(a.Out, "  %s: %s\n", k, ve.Fields[k])
		}
		return errors.New("please fix the fields above")
	}
	if msg := a.Flow.Store().Session().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func newLoginCommand(a *App) *cobra.Command {
	var creds domain.LoginCredentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer watchNavigation(a)()

			var err error
			if creds.Email, err = a.prompt("Email", creds.Email); err != nil {
				return err
			}
			if creds.Password, err = a.prompt("Password", creds.Password); err != nil {
				return err
			}
			if err := a.Flow.Login(cmd.Context(), creds); err != nil {
				return report(a, err)
			}
			fmt.Fprintf(a.Out, "Welcome back, %s\n", a.Flow.Store().Session().User.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newSignupCommand(a *App) *cobra.Command {
	var (
		creds domain.SignupCredentials
		phone string
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account, then verify it with the emailed OTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer watchNavigation(a)()

			var err error
			if creds.Name, err = a.prompt("Full name", creds.Name); err != nil {
				return err
			}
			if creds.Email, err = a.prompt("Email", creds.Email); err != nil {
				return err
			}
			if creds.Password, err = a.prompt("Password", creds.Password); err != nil {
				return err
			}
			if creds.ConfirmPassword, err = a.prompt("Confirm password", creds.ConfirmPassword); err != nil {
				return err
			}
			if phone != "" {
				creds.Phone = &phone
			}

			ch, err := a.Flow.Signup(cmd.Context(), creds)
			if err != nil {
				return report(a, err)
			}
			fmt.Fprintf(a.Out, "Account created. An OTP was sent to %s\n", ch.Email)
			return runOTPScreen(cmd.Context(), a, *ch)
		},
	}
	cmd.Flags().StringVar(&creds.Name, "name", "", "full name")
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&creds.ConfirmPassword, "confirm-password", "", "password confirmation (prompted when omitted)")
	cmd.Flags().StringVar(&phone, "phone", "", "optional phone number in E.164 form, for SMS delivery")
	return cmd
}

func newVerifyCommand(a *App) *cobra.Command {
	var (
		email, typ, code string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an OTP; without --code it prompts and offers resend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer watchNavigation(a)()

			var err error
			if email, err = a.prompt("Email", email); err != nil {
				return err
			}
			ch := otp.Challenge{Email: email, Type: domain.OTPType(typ)}
			if code == "" {
				return runOTPScreen(cmd.Context(), a, ch)
			}
			if err := a.Flow.VerifyOTP(cmd.Context(), ch, code); err != nil {
				return report(a, err)
			}
			fmt.Fprintln(a.Out, "Verified.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&typ, "type", string(domain.OTPTypeSignup), "OTP purpose: signup or login")
	cmd.Flags().StringVar(&code, "code", "", "6-digit OTP")
	return cmd
}

func newResendCommand(a *App) *cobra.Command {
	var email, typ string
	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Ask the service for a fresh OTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if email, err = a.prompt("Email", email); err != nil {
				return err
			}
			if err := a.Flow.ResendOTP(cmd.Context(), otp.Challenge{Email: email, Type: domain.OTPType(typ)}, nil); err != nil {
				return report(a, err)
			}
			fmt.Fprintln(a.Out, "OTP sent.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&typ, "type", string(domain.OTPTypeSignup), "OTP purpose: signup or login")
	return cmd
}

func newWhoamiCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and the visible stack",
		RunE: func(*cobra.Command, []string) error {
			s := a.Flow.Store().Session()
			stack := navigation.Derive(s)
			if !s.IsAuthenticated {
				fmt.Fprintf(a.Out, "Not logged in. %s stack (%s)\n", stack, stack.Initial())
				return nil
			}
			fmt.Fprintf(a.Out, "%s <%s>\n", s.User.Name, s.User.Email)
			fmt.Fprintf(a.Out, "%s stack (%s)\n", stack, stack.Initial())
			return nil
		},
	}
}

func newLogoutCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on this device",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer watchNavigation(a)()
			if err := a.Flow.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.Out, "Logged out.")
			return nil
		},
	}
}

func newThemeCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|system|toggle]",
		Short:     "Show or change the appearance preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"light", "dark", "system", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			// ThemeSettings belongs to the Main stack.
			if navigation.Derive(a.Flow.Store().Session()) != navigation.StackMain {
				return errors.New("log in to open theme settings")
			}
			current, err := a.loadTheme(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				next := current.Toggle()
				if args[0] != "toggle" {
					if next, err = theme.Parse(args[0]); err != nil {
						return err
					}
				}
				if err := a.saveTheme(cmd.Context(), next); err != nil {
					return err
				}
				current = next
			}
			fmt.Fprintf(a.Out, "Current theme: %s\n", current)
			return nil
		},
	}
}

func (a *App) loadTheme(ctx context.Context) (theme.Mode, error) {
	if a.theme != "" {
		return a.theme, nil
	}
	if a.Prefs == nil {
		return theme.Default, nil
	}
	v, err := a.Prefs.LoadTheme(ctx)
	if err != nil {
		return "", err
	}
	m, err := theme.Parse(v)
	if err != nil {
		return theme.Default, nil
	}
	a.theme = m
	return m, nil
}

func (a *App) saveTheme(ctx context.Context, m theme.Mode) error {
	if a.Prefs != nil {
		if err := a.Prefs.SaveTheme(ctx, string(m)); err != nil {
			return err
		}
	}
	a.theme = m
	return nil
}

// runOTPScreen prompts for a code until one verifies. Entering "r" requests a
// new code once the cooldown has elapsed; an empty line gives up.
func runOTPScreen(ctx context.Context, a *App, ch otp.Challenge) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cd := otp.NewCooldown(a.CooldownTicks)
	go cd.Run(ctx, a.tick(), nil)

	for {
		line, err := a.prompt(`OTP ("r" to resend, empty to quit)`, "")
		if err != nil {
			return err
		}
		switch strings.ToLower(line) {
		case "":
			return errors.New("verification abandoned")
		case "r", "resend":
			err := a.Flow.ResendOTP(ctx, ch, cd)
			switch {
			case errors.Is(err, flow.ErrCooldown):
				fmt.Fprintf(a.Out, "Resend OTP in %ds\n", cd.Remaining())
			case err != nil:
				fmt.Fprintf(a.Out, "%v\n", report(a, err))
			default:
				fmt.Fprintln(a.Out, "A new OTP was sent.")
				go cd.Run(ctx, a.tick(), nil)
			}
			continue
		}

		if err := a.Flow.VerifyOTP(ctx, ch, line); err != nil {
			fmt.Fprintf(a.Out, "%v\n", report(a, err))
			continue
		}
		fmt.Fprintln(a.Out, "Verified.")
		return nil
	}
}
