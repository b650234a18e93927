package machine

import "fmt"

// Kind identifies one of the abstract error categories from the spec's
// error-handling design (spec.md §7). Tests and hosts branch on Kind rather
// than on error text.
type Kind int

const (
	KindUnknown Kind = iota
	KindDecodeOutOfBounds
	KindDecoderEmpty
	KindInvalidInstruction
	KindUnsupportedOpcode
	KindOutOfBounds
	KindRegionOverlap
	KindBadRegister
	KindDivideError
	KindElfInvalidMagic
	KindElfBufferTooShort
	KindElfInvalidClass
	KindElfNoTextSection
	KindElfContentOverflow
	KindUnsupportedDynamic
	KindHookRegistryBusy
	KindHookCallbackFailed
	KindEngineAlreadyFinished
)

// Error is the single error type every exported operation returns. It
// carries a Kind for programmatic matching plus human-readable context that
// accumulates as the error bubbles out of step() (spec.md §7: "the engine
// annotates the outgoing error with instruction text, encoding code, and
// executed-count").
type Error struct {
	Kind    Kind
	Message string
	Inner   error
}

func (e *Error) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Inner)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Inner }

// Newf builds an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind whose message is context and whose
// Inner is the original error, which stays reachable through errors.Is/As.
// The result carries kind, not the Kind of inner.
func Wrap(kind Kind, context string, inner error) *Error {
	return &Error{Kind: kind, Message: context, Inner: inner}
}

// WithContext prefixes the message with extra detail (instruction text,
// encoding code, executed count) and returns a new *Error preserving Kind.
func (e *Error) WithContext(detail string) *Error {
	return &Error{Kind: e.Kind, Message: detail + e.Message, Inner: e.Inner}
}
