package domain

// OTPType is the purpose an OTP was issued for.
type OTPType string

const (
	OTPTypeSignup OTPType = "signup"
	OTPTypeLogin  OTPType = "login"
)

// Valid reports whether t is a known OTP purpose.
func (t OTPType) Valid() bool {
	return t == OTPTypeSignup || t == OTPTypeLogin
}

// OrDefault returns t, or OTPTypeSignup when t is empty.
func (t OTPType) OrDefault() OTPType {
	if t == "" {
		return OTPTypeSignup
	}
	return t
}

// UserVerification stores an issued OTP.
// PK: user_id, SK: type ("signup" | "login").
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type UserVerification struct {
	UserID    string  `json:"user_id" dynamodbav:"user_id"`
	Type      OTPType `json:"type" dynamodbav:"type"`
	Code      string  `json:"code" dynamodbav:"code"`
	ExpiresAt int64   `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// VerifyOTPRequest is the body of POST /verify-otp.
type VerifyOTPRequest struct {
	Email string  `json:"email" validate:"notblank,emailshape"`
	OTP   string  `json:"otp" validate:"required,len=6,numeric"`
	Type  OTPType `json:"type" validate:"omitempty,oneof=signup login"`
}

// ResendOTPRequest is the body of POST /resend-otp.
type ResendOTPRequest struct {
	Email string  `json:"email" validate:"notblank,emailshape"`
	Type  OTPType `json:"type" validate:"omitempty,oneof=signup login"`
}
