package openai

import (
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

type ErrorKind int

const (
	// KindTransport covers network failures and any error raised before a
	// well-formed response was received
	KindTransport ErrorKind = iota
	// KindAPI covers responses the remote service answered with an error envelope
	KindAPI
)

// RemoteError is the single error shape the client boundary produces for
// remote failures, discriminated by Kind.
type RemoteError struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Message    string
	err        error
}

func (e *RemoteError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.err
}

// IsTransport reports whether err is a remote error of transport kind
func IsTransport(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == KindTransport
}

func normalize(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{
			Op:         op,
			Kind:       KindAPI,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &RemoteError{
			Op:         op,
			Kind:       KindAPI,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			err:        err,
		}
	}

	return &RemoteError{
		Op:      op,
		Kind:    KindTransport,
		Message: err.Error(),
		err:     err,
	}
}
