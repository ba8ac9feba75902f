package media

import (
	"errors"
	"fmt"
)

// ErrorKind classifies resolution failures surfaced to callers.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidURL
	KindUnsupportedHost
	KindUnsupportedPlatform
	KindNoRedirect
	KindPageStructureChanged
	KindPlatformRejected
	KindEmptyResult
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidURL:
		return "InvalidUrl"
	case KindUnsupportedHost:
		return "UnsupportedHost"
	case KindUnsupportedPlatform:
		return "UnsupportedPlatform"
	case KindNoRedirect:
		return "NoRedirect"
	case KindPageStructureChanged:
		return "PageStructureChanged"
	case KindPlatformRejected:
		return "PlatformRejected"
	case KindEmptyResult:
		return "EmptyResult"
	case KindNetwork:
		return "NetworkError"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidURL           = &Error{Kind: KindInvalidURL, Message: "invalid URL"}
	ErrUnsupportedHost      = &Error{Kind: KindUnsupportedHost, Message: "unsupported host"}
	ErrUnsupportedPlatform  = &Error{Kind: KindUnsupportedPlatform, Message: "unsupported platform"}
	ErrNoRedirect           = &Error{Kind: KindNoRedirect, Message: "no redirect"}
	ErrPageStructureChanged = &Error{Kind: KindPageStructureChanged, Message: "no known payload format matched the page; the page structure may have changed"}
	ErrPlatformRejected     = &Error{Kind: KindPlatformRejected, Message: "content rejected by platform"}
	ErrEmptyResult          = &Error{Kind: KindEmptyResult, Message: "post has no retrievable media"}
	ErrNetwork              = &Error{Kind: KindNetwork, Message: "network error"}
)

// Error is a terminal resolution failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Host    string // UnsupportedHost / UnsupportedPlatform
	Reason  string // PlatformRejected
	Detail  string // PlatformRejected
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	switch {
	case e.Kind == KindPlatformRejected:
		msg = fmt.Sprintf("%s: %s - %s", msg, e.Reason, e.Detail)
	case e.Host != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Host)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf returns a new *Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a new *Error of the given kind wrapping err.
func Wrap(kind ErrorKind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithHost records the host that triggered the error.
func (e *Error) WithHost(host string) *Error {
	e.Host = host
	return e
}

// Rejected returns a PlatformRejected error carrying the platform's reason and detail.
func Rejected(reason, detail string) *Error {
	return &Error{
		Kind:    KindPlatformRejected,
		Message: "content rejected by platform",
		Reason:  reason,
		Detail:  detail,
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
