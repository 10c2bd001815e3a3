// Package fault defines the error kinds returned by the edupage client. Every error a caller
// sees can be classified with errors.Is against one of the Err* values or with KindOf.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	// no origin or session established yet, or the client was built with bad options
	KindConfiguration
	// bad credentials, invalid second factor, ambiguous account or a session that will not stick
	KindAuthentication
	// an extraction pattern matched nothing, the page no longer looks the way it used to
	KindPageStructure
	// matched text is not valid JSON or does not fit the expected shape
	KindContentDecode
	KindNetwork
	KindRetriesExhausted
	// malformed input to a public operation
	KindValidation
	// a JSON endpoint answered but reported a non-ok status
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindPageStructure:
		return "page structure"
	case KindContentDecode:
		return "content decode"
	case KindNetwork:
		return "network"
	case KindRetriesExhausted:
		return "retries exhausted"
	case KindValidation:
		return "validation"
	case KindAPI:
		return "api"
	}
	return "unknown"
}

var (
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrAuthentication   = &Error{Kind: KindAuthentication}
	ErrPageStructure    = &Error{Kind: KindPageStructure}
	ErrContentDecode    = &Error{Kind: KindContentDecode}
	ErrNetwork          = &Error{Kind: KindNetwork}
	ErrRetriesExhausted = &Error{Kind: KindRetriesExhausted}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrAPI              = &Error{Kind: KindAPI}
)

// Error is the concrete error type. Pattern, Snippet and Document are filled in by the
// extractor and by the request engine so a failure can be reproduced offline.
type Error struct {
	Kind    Kind
	Message string

	// Pattern is the name of the extraction pattern being matched.
	Pattern string
	// Snippet is the offending substring, a single matched value or the last response body.
	Snippet string
	// Document is the full page or response the failure came from.
	Document string

	Err error
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

const maxSnippet = 120

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Pattern != "" {
		fmt.Fprintf(&b, " [%s]", e.Pattern)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Snippet != "" {
		snippet := e.Snippet
		if len(snippet) > maxSnippet {
			snippet = snippet[:maxSnippet] + "..."
		}
		fmt.Fprintf(&b, " (near %q)", snippet)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the bare kind sentinels (ErrNetwork, ErrPageStructure, ...).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message != "" || t.Err != nil || t.Pattern != "" {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	ok := errors.As(err, &target)
	return target, ok
}
