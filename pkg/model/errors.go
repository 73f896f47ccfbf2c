package model

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedBackend is returned for backend IDs outside the
	// known set.
	ErrUnsupportedBackend = errors.New("unsupported backend")

	// ErrNoRedirectFound is returned when redirect resolution yields no
	// usable media URL.
	ErrNoRedirectFound = errors.New("no redirect URL found")

	// ErrBadResponse is returned when a provider response cannot be
	// parsed.
	ErrBadResponse = errors.New("malformed provider response")
)
