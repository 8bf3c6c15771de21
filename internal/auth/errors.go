package auth

import "errors"

var (
	ErrNoSession          = errors.New("auth: no live session")
	ErrInvalidOTP         = errors.New("auth: invalid or expired otp")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrNoPassword         = errors.New("auth: account has no password, use OTP")
)

// InputError is a rejected auth request with a message safe to show users.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }
