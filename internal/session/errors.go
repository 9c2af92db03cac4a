package session

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it
type Kind string

const (
	KindDuplicateSession   Kind = "DuplicateSession"
	KindSessionNotFound    Kind = "SessionNotFound"
	KindDuplicateTab       Kind = "DuplicateTab"
	KindTabNotFound        Kind = "TabNotFound"
	KindNoTabsAvailable    Kind = "NoTabsAvailable"
	KindProvisioning       Kind = "ProvisioningFailure"
	KindDelegatedOperation Kind = "DelegatedOperationFailure"
	KindConnectionLost     Kind = "ConnectionLost"
	KindInvalidArgument    Kind = "InvalidArgument"
	KindInternal           Kind = "InternalError"
)

// Error is a classified session failure
type Error struct {
	Kind      Kind
	SessionID string
	TabID     string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindDuplicateSession:
		return fmt.Sprintf("session '%s' already exists. Use a different session_id or close the existing session first", e.SessionID)
	case KindSessionNotFound:
		return fmt.Sprintf("session '%s' not found", e.SessionID)
	case KindDuplicateTab:
		return fmt.Sprintf("tab '%s' already exists", e.TabID)
	case KindTabNotFound:
		if e.Err != nil {
			return fmt.Sprintf("tab '%s' not found: %v", e.TabID, e.Err)
		}
		return fmt.Sprintf("tab '%s' not found", e.TabID)
	case KindNoTabsAvailable:
		return fmt.Sprintf("session '%s' has no open tabs; create one with new_tab", e.SessionID)
	case KindConnectionLost:
		return fmt.Sprintf("session '%s' lost its browser connection and was closed; create a new session: %v", e.SessionID, e.Err)
	case KindDelegatedOperation:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}

	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprint(e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Invalid builds an argument validation error
func Invalid(format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Err: fmt.Errorf(format, args...)}
}

func notFound(sessionID string) error {
	return &Error{Kind: KindSessionNotFound, SessionID: sessionID}
}
