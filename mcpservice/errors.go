package mcpservice

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed tool invocation or transport request.
type ErrorKind string

const (
	// KindConfiguration reports that the Notion client could not be built,
	// typically because the credential is missing.
	KindConfiguration ErrorKind = "ConfigurationError"
	// KindUnknownTool reports a tools/call naming an unregistered tool.
	KindUnknownTool ErrorKind = "UnknownTool"
	// KindInvalidArguments reports a structural schema violation.
	KindInvalidArguments ErrorKind = "InvalidArguments"
	// KindMalformedPayload reports a JSON-text argument that does not parse
	// or does not have the declared shape.
	KindMalformedPayload ErrorKind = "MalformedPayload"
	// KindSessionNotFound reports a request addressed to an unknown session.
	KindSessionNotFound ErrorKind = "SessionNotFound"
	// KindUpstream reports a failure surfaced by the Notion API.
	KindUpstream ErrorKind = "UpstreamError"
)

// Error is a classified failure. Field names the offending argument for
// InvalidArguments and MalformedPayload.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidArgumentsError builds a KindInvalidArguments error for field.
func InvalidArgumentsError(field, format string, a ...any) *Error {
	return &Error{Kind: KindInvalidArguments, Field: field, Message: fmt.Sprintf(format, a...)}
}

// MalformedPayloadError builds a KindMalformedPayload error for field.
func MalformedPayloadError(field string, err error) *Error {
	return &Error{Kind: KindMalformedPayload, Field: field, Message: err.Error(), Err: err}
}

// UnknownToolError builds a KindUnknownTool error.
func UnknownToolError(name string) *Error {
	return &Error{Kind: KindUnknownTool, Message: fmt.Sprintf("unknown tool %q", name)}
}

// ConfigurationError wraps a client construction failure.
func ConfigurationError(err error) *Error {
	return &Error{Kind: KindConfiguration, Message: err.Error(), Err: err}
}

// UpstreamError wraps a collaborator failure, keeping its message verbatim.
func UpstreamError(err error) *Error {
	return &Error{Kind: KindUpstream, Message: err.Error(), Err: err}
}

// SessionNotFoundError builds a KindSessionNotFound error.
func SessionNotFoundError(id string) *Error {
	return &Error{Kind: KindSessionNotFound, Message: fmt.Sprintf("session %q not found", id)}
}

// KindOf returns the kind of a classified error. Unclassified errors are
// reported as KindUpstream since they originate below the dispatcher.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstream
}

// classify converts any handler error into an *Error.
func classify(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return UpstreamError(err)
}
