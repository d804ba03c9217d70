// Package auth checks sign-in credentials.
//
// It makes no session or storage decisions; callers start sessions once a
// Validator accepts the credentials.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates the credentials presented for an account.
type Validator interface {
	Validate(account, secret string) error
}

// SharedSecret accepts any account presenting the one configured secret.
// It is intended for development and single-tenant deployments.
type SharedSecret struct {
	Secret string
}

func (s SharedSecret) Validate(account, secret string) error {
	if s.Secret == "" || strings.TrimSpace(account) == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Secret), []byte(secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// AllowAny accepts every non-empty account.
type AllowAny struct{}

func (AllowAny) Validate(account, _ string) error {
	if strings.TrimSpace(account) == "" {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(account, secret string) error

func (f FuncValidator) Validate(account, secret string) error {
	return f(account, secret)
}
