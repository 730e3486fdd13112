// Package remoteerr defines the uniform failure contract returned by every
// store verb. UI collaborators iterate Messages unconditionally, so every
// failure reaching them must carry at least one message.
package remoteerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FallbackMessage is used when a failure carries no readable text.
const FallbackMessage = "An unexpected error occurred"

// Kind classifies where a failure originated.
type Kind int

const (
	// KindTransport means no response reached the client.
	KindTransport Kind = iota + 1
	// KindApplication means the server answered with an error status.
	KindApplication
	// KindValidation means the request was refused before any remote call.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the normalized failure. Messages is never empty.
type Error struct {
	Kind     Kind
	Status   int
	Messages []string
	Cause    error
}

func (e *Error) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *Error) Unwrap() error { return e.Cause }

// Envelope is the rejection shape handed to UI code:
// {"response":{"data":{"messages":[...]}}}.
type Envelope struct {
	Response struct {
		Data struct {
			Messages []string `json:"messages"`
		} `json:"data"`
	} `json:"response"`
}

// Envelope returns the rejection shape for this error.
func (e *Error) Envelope() Envelope {
	var env Envelope
	env.Response.Data.Messages = append([]string(nil), e.Messages...)
	return env
}

// MarshalJSON encodes the error in its envelope shape.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Envelope())
}

// FromTransport wraps a failure where no response was received.
func FromTransport(err error) *Error {
	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	return &Error{Kind: KindTransport, Messages: messagesOrFallback([]string{msg}), Cause: err}
}

// FromApplication wraps a server-reported failure.
func FromApplication(status int, messages []string) *Error {
	return &Error{Kind: KindApplication, Status: status, Messages: messagesOrFallback(messages)}
}

// FromValidation wraps a local refusal. The cause stays reachable through errors.Is.
func FromValidation(err error) *Error {
	var msgs []string
	var fe interface{ FieldMessages() []string }
	if errors.As(err, &fe) {
		msgs = fe.FieldMessages()
	} else if err != nil {
		msgs = []string{err.Error()}
	}
	return &Error{Kind: KindValidation, Messages: messagesOrFallback(msgs), Cause: err}
}

// Validationf builds a validation failure around a sentinel.
func Validationf(sentinel error, format string, args ...any) *Error {
	return FromValidation(fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...))
}

// Normalize converts any error into *Error. Already-normalized errors are
// returned as is; anything else is treated as a transport failure.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		if len(re.Messages) == 0 {
			re.Messages = []string{FallbackMessage}
		}
		return re
	}
	return FromTransport(err)
}

// Messages returns the messages of err after normalization.
func Messages(err error) []string {
	if re := Normalize(err); re != nil {
		return re.Messages
	}
	return nil
}

// IsKind reports whether err normalizes to the given kind.
func IsKind(err error, k Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == k
}

// ParseBody extracts messages from an error response body. Both "message"
// and "messages" are accepted, each as a string or an array of strings.
func ParseBody(body []byte) []string {
	var raw struct {
		Message  json.RawMessage `json:"message"`
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}
	if msgs := decodeStrings(raw.Messages); len(msgs) > 0 {
		return msgs
	}
	return decodeStrings(raw.Message)
}

func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return compact([]string{one})
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return compact(many)
	}
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func messagesOrFallback(in []string) []string {
	out := compact(in)
	if len(out) == 0 {
		return []string{FallbackMessage}
	}
	return out
}
