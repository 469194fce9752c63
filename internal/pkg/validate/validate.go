package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-auth-flow/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time with the custom credential tags registered.
var v = newValidator()

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const passwordSpecials = "@$!%*?&"

// messages maps "<json field>.<tag>" to the message shown next to the field.
var messages = map[string]string{
	"email.notblank":           "Email is required",
	"email.emailshape":         "Please enter a valid email address",
	"password.required":        "Password is required",
	"password.min":             "Password must be at least 8 characters",
	"password.strongpassword":  "Password must include uppercase, lowercase, number and special character",
	"name.notblank":            "Full name is required",
	"name.fullname":            "Name must be at least 2 characters",
	"confirmPassword.required": "Please confirm your password",
	"confirmPassword.eqfield":  "Passwords do not match",
	"phone.e164":               "Please enter a valid phone number",
	"otp.required":             "Please enter a valid 6-digit OTP",
	"otp.len":                  "Please enter a valid 6-digit OTP",
	"otp.numeric":              "Please enter a valid 6-digit OTP",
	"type.oneof":               "Unknown OTP type",
}

// FieldErrors maps a JSON field name to the message for its first failing rule.
// An empty map means the input is valid.
type FieldErrors map[string]string

// Empty reports whether no field failed.
func (fe FieldErrors) Empty() bool { return len(fe) == 0 }

// String joins all messages in field order.
func (fe FieldErrors) String() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, fe[f])
	}
	return strings.Join(msgs, "; ")
}

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	mustRegister(val, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(val, "emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	mustRegister(val, "strongpassword", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	mustRegister(val, "fullname", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) >= 2
	})
	return val
}

func mustRegister(val *validator.Validate, tag string, fn validator.Func) {
	if err := val.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

// strongPassword requires a lowercase letter, an uppercase letter, a digit and
// one of the accepted special characters.
func strongPassword(s string) bool {
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// Fields validates s and returns the per-field messages.
func Fields(s interface{}) FieldErrors {
	out := FieldErrors{}
	err := v.Struct(s)
	if err == nil {
		return out
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range ve {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag())
		}
		out[fe.Field()] = msg
	}
	return out
}

// Struct validates the given struct using its validate tags.
// Returns a domain.ErrBadRequest error carrying the user-facing messages, or nil.
func Struct(s interface{}) error {
	fe := Fields(s)
	if fe.Empty() {
		return nil
	}
	return domain.NewError(domain.ErrBadRequest, fe.String())
}

// Login checks login credentials before submission.
func Login(c domain.LoginCredentials) FieldErrors { return Fields(c) }

// Signup checks signup credentials before submission.
func Signup(c domain.SignupCredentials) FieldErrors { return Fields(c) }

// OTP checks that code is a 6-digit one-time password. It returns the message
// to show, or "" when the code is acceptable.
func OTP(code string) string {
	if err := v.Var(code, "required,len=6,numeric"); err != nil {
		return messages["otp.len"]
	}
	return ""
}
