package domain

import "time"

// User is the stored account record.
type User struct {
	UserID          string    `json:"id" dynamodbav:"user_id"`
	Name            string    `json:"name" dynamodbav:"name"`
	Email           string    `json:"email" dynamodbav:"email"`
	Phone           *string   `json:"phone,omitempty" dynamodbav:"phone"`
	PasswordHash    string    `json:"-" dynamodbav:"password_hash"`
	IsEmailVerified bool      `json:"isEmailVerified" dynamodbav:"email_verified"`
	Enable          bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt       time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Public returns the representation of u exposed by the API.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	verified := u.IsEmailVerified
	return &PublicUser{
		ID:              u.UserID,
		Email:           u.Email,
		Name:            u.Name,
		IsEmailVerified: &verified,
	}
}

// PublicUser is the user value exchanged between the API and its clients.
// Clients replace it wholesale on every successful auth action.
type PublicUser struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	IsEmailVerified *bool  `json:"isEmailVerified,omitempty"`
}

// LoginCredentials is the body of POST /login.
type LoginCredentials struct {
	Email    string `json:"email" validate:"notblank,emailshape"`
	Password string `json:"password" validate:"required,min=8,strongpassword"`
}

// SignupCredentials is the body of POST /signup.
type SignupCredentials struct {
	Name            string  `json:"name" validate:"notblank,fullname"`
	Email           string  `json:"email" validate:"notblank,emailshape"`
	Password        string  `json:"password" validate:"required,min=8,strongpassword"`
	ConfirmPassword string  `json:"confirmPassword" validate:"required,eqfield=Password"`
	Phone           *string `json:"phone,omitempty" validate:"omitempty,e164"`
}

// SignupResult is the data payload of a successful signup.
type SignupResult struct {
	UserID          string `json:"userId"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

// AuthResult is the data payload of login and verify-otp.
type AuthResult struct {
	Token string      `json:"token"`
	User  *PublicUser `json:"user"`
}
