package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies user-facing command failures.
type Kind int

const (
	KindUnknownMember Kind = iota + 1
	KindUnknownGroup
	KindDuplicateName
	KindInvalidArguments
	KindInvalidCommandFormat
	KindDataMissing
	KindForbiddenAction
)

func (k Kind) String() string {
	switch k {
	case KindUnknownMember:
		return "unknown_member"
	case KindUnknownGroup:
		return "unknown_group"
	case KindDuplicateName:
		return "duplicate_name"
	case KindInvalidArguments:
		return "invalid_arguments"
	case KindInvalidCommandFormat:
		return "invalid_command_format"
	case KindDataMissing:
		return "data_missing"
	case KindForbiddenAction:
		return "forbidden_action"
	}
	return "unknown"
}

// Error is a recoverable validation failure whose message is shown to the
// user verbatim.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

// Is reports whether target is an *Error of the same kind, so the kind
// sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Kind sentinels, for use with errors.Is.
var (
	ErrUnknownMember        = &Error{Kind: KindUnknownMember}
	ErrUnknownGroup         = &Error{Kind: KindUnknownGroup}
	ErrDuplicateName        = &Error{Kind: KindDuplicateName}
	ErrInvalidArguments     = &Error{Kind: KindInvalidArguments}
	ErrInvalidCommandFormat = &Error{Kind: KindInvalidCommandFormat}
	ErrDataMissing          = &Error{Kind: KindDataMissing}
	ErrForbiddenAction      = &Error{Kind: KindForbiddenAction}
)

// Storage sentinels returned by Store and TransferCodes implementations.
var (
	ErrNoLog                = errors.New("ledger: no log entry")
	ErrChatNotFound         = errors.New("ledger: chat not found")
	ErrTransferCodeNotFound = errors.New("ledger: transfer code not found")
)
