package relink

import (
	"errors"
	"fmt"

	"github.com/julianfbeck/panopto-relink-cli/internal/config"
	"github.com/julianfbeck/panopto-relink-cli/internal/panopto"
)

// ErrEmptyGroupName is returned by Resolve for a blank group name, before
// any remote call.
var ErrEmptyGroupName = errors.New("group name is required")

// Kind classifies a failed lookup for operator diagnostics.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfigurationMissing
	KindRemoteUnavailable
	KindMalformedResponse
)

func (k Kind) String() string {
	switch k {
	case KindConfigurationMissing:
		return "configuration_missing"
	case KindRemoteUnavailable:
		return "remote_unavailable"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// Error is returned by Resolve for every failed lookup.
type Error struct {
	Kind  Kind
	Group string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("resolve %q: %s: %v", e.Group, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of err, looking through wrapping.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	switch {
	case errors.Is(err, config.ErrConfigurationMissing):
		return KindConfigurationMissing
	case errors.Is(err, panopto.ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, panopto.ErrRemoteUnavailable):
		return KindRemoteUnavailable
	default:
		return KindUnknown
	}
}

func wrap(group string, err error) error {
	kind := KindOf(err)
	if kind == KindUnknown {
		// Unclassified service errors count as remote failures.
		kind = KindRemoteUnavailable
	}
	return &Error{Kind: kind, Group: group, Err: err}
}
