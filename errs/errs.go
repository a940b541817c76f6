// Package errs defines the cross-cutting error taxonomy from spec.md §7:
// Format/validation, Runtime faults, Resource, Storage, Trie, Security,
// Concurrency and Audit error kinds. Every error carries a Kind plus
// structured context (pc, opcode, dot id, resource name, ...) so callers can
// branch on errors.As without parsing strings.
package errs

import "fmt"

// Kind enumerates the error taxonomy categories from spec.md §7.
type Kind string

const (
	KindFormat      Kind = "format"
	KindRuntime     Kind = "runtime"
	KindResource    Kind = "resource"
	KindStorage     Kind = "storage"
	KindTrie        Kind = "trie"
	KindSecurity    Kind = "security"
	KindConcurrency Kind = "concurrency"
	KindAudit       Kind = "audit"
)

// Error is the structured error type returned across every package in this
// module. Context carries optional diagnostic fields (pc, opcode, dot id).
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s %v: %v", e.Kind, e.Message, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %s %v", e.Kind, e.Message, e.Context)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that wraps cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// With returns a copy of e with additional context fields merged in.
func (e *Error) With(ctx map[string]any) *Error {
	merged := make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	return &Error{Kind: e.Kind, Message: e.Message, Context: merged, Err: e.Err}
}

// Is reports whether target is an *Error with the same Kind, supporting
// errors.Is(err, errs.New(errs.KindStorage, "")) style kind checks when
// Message is empty; an empty Message matches any message of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}
