package domain

import (
	"fmt"
	"strings"
)

// Origin records where a session's cookies came from.
type Origin string

const (
	OriginLogin   Origin = "login"
	OriginCache   Origin = "cache"
	OriginCookies Origin = "cookies"
)

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if c.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// Redacted is safe to log.
func (c Credentials) Redacted() string {
	if c.Password == "" {
		return c.Username
	}
	return c.Username + ":***"
}
