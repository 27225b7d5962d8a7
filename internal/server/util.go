package server

import (
	"errors"
	"strings"

	"github.com/eekfonky/healthcore/internal/procman"
)

// sanitizeBase normalizes a mount path: leading '/', no trailing slash,
// empty stays empty.
func sanitizeBase(base string) string {
	b := strings.TrimSpace(base)
	if b == "" || b == "/" {
		return ""
	}
	if !strings.HasPrefix(b, "/") {
		b = "/" + b
	}
	return strings.TrimRight(b, "/")
}

func asSecurityError(err error, target **procman.SecurityError) bool {
	return errors.As(err, target)
}
