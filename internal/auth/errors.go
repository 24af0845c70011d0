package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTenantNotFound     = errors.New("auth: tenant not found")
	ErrTenantInactive     = errors.New("auth: tenant inactive")
	ErrAccountInactive    = errors.New("auth: account inactive")
	ErrEmailUnverified    = errors.New("auth: email not verified")
	ErrSessionNotFound    = errors.New("auth: session not found")
	ErrWeakPassword       = errors.New("auth: password too weak")
)
