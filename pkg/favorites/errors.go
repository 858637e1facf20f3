package favorites

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Sternrassler/ordering-favorites/pkg/client"
)

// ErrUnknownKind is returned for an entity kind outside the known set.
var ErrUnknownKind = errors.New("unknown entity kind")

// FailureKind tells transport failures from server-reported ones.
type FailureKind string

const (
	// FailureTransport means the request did not produce an API envelope.
	FailureTransport FailureKind = "transport"
	// FailureServer means the API answered with error: true.
	FailureServer FailureKind = "server"
)

// Failure is the error recorded in list state. It serializes the way the
// API reports errors: the server's result verbatim, or a one-element
// message list for transport failures.
type Failure struct {
	Kind     FailureKind
	Messages []string
	Detail   json.RawMessage
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + strings.Join(f.Messages, "; ")
}

// MarshalJSON emits Detail for server failures and Messages otherwise.
func (f *Failure) MarshalJSON() ([]byte, error) {
	if f.Kind == FailureServer && len(f.Detail) > 0 {
		return f.Detail, nil
	}
	msgs := f.Messages
	if msgs == nil {
		msgs = []string{}
	}
	return json.Marshal(msgs)
}

// failureFrom converts a client error into list state.
func failureFrom(err error) *Failure {
	if err == nil {
		return nil
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return &Failure{
			Kind:     FailureServer,
			Messages: apiErr.Messages(),
			Detail:   apiErr.Result,
		}
	}
	return &Failure{
		Kind:     FailureTransport,
		Messages: []string{err.Error()},
	}
}
