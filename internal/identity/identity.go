// Package identity supplies the current authenticated user id to
// components that need one when no id is passed explicitly. The core does
// not implement authentication; it only consumes the resolved identity.
package identity

import "errors"

// ErrNoIdentity indicates no user is currently authenticated.
var ErrNoIdentity = errors.New("no authenticated user")

// Provider resolves the current authenticated user id.
type Provider interface {
	CurrentUserID() (string, error)
}

// Static returns a fixed user id, typically sourced from configuration.
type Static struct {
	UserID string
}

var _ Provider = Static{}

// CurrentUserID implements Provider.
func (s Static) CurrentUserID() (string, error) {
	if s.UserID == "" {
		return "", ErrNoIdentity
	}
	return s.UserID, nil
}
