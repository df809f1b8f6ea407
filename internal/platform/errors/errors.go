package apperrors

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrAuth         = errors.New("authentication failed")
	ErrNetwork      = errors.New("network error")
	ErrIO           = errors.New("filesystem error")
	ErrConfig       = errors.New("configuration error")
)

// Kind names the first taxonomy error err wraps, or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "unknown"
	}
}
