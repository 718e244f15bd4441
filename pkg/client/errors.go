package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// TransportError means the request never produced an HTTP response:
// the service was unreachable or the request was aborted.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is a non-2xx answer from the service.
type RemoteError struct {
	Op         string
	StatusCode int
	Status     string
	// Detail is the service's own error description, when it sent one.
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: service answered %s: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: service answered %s", e.Op, e.Status)
}

// MalformedReplyError means a 2xx body could not be turned into a message.
type MalformedReplyError struct {
	Op     string
	Reason string
	Err    error
}

func (e *MalformedReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed reply: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed reply: %s", e.Op, e.Reason)
}

func (e *MalformedReplyError) Unwrap() error {
	return e.Err
}

const (
	KindTransport = "transport"
	KindRemote    = "remote"
	KindMalformed = "malformed_reply"
	KindOther     = "other"
)

// ErrorKind names the taxonomy bucket of err, for logging.
func ErrorKind(err error) string {
	var transportErr *TransportError
	var remoteErr *RemoteError
	var malformedErr *MalformedReplyError
	switch {
	case errors.As(err, &transportErr):
		return KindTransport
	case errors.As(err, &remoteErr):
		return KindRemote
	case errors.As(err, &malformedErr):
		return KindMalformed
	default:
		return KindOther
	}
}
