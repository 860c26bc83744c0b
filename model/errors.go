package model

import "fmt"

// noAckIdsMessage is the exact broker error message that identifies an
// empty ack/nack batch. It should never occur in practice since the
// batchers never close an empty group, but the broker's own wording is
// matched defensively.
const noAckIdsMessage = "No ack ids specified."

// ErrNoAckIds is returned when the broker rejects an empty ack/nack
// batch. Seeing this indicates a bug in the batching logic upstream:
// an empty group should never reach the wire.
var ErrNoAckIds = fmt.Errorf("pubsub: no ack ids specified")

// UnknownError wraps an unrecognized error body returned by the broker.
type UnknownError struct {
	StatusCode int
	Status     string
	Message    string
	Body       []byte
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("pubsub: unknown error (http=%d status=%s): %s", e.StatusCode, e.Status, e.Message)
}

// UnparseableBodyError wraps a response body that could not be parsed
// as the Pub/Sub error shape at all.
type UnparseableBodyError struct {
	Raw string
}

func (e *UnparseableBodyError) Error() string {
	return fmt.Sprintf("pubsub: unparseable error body: %s", e.Raw)
}

// FailedRequestError wraps a non-2xx response on the producer path that
// carries a well-formed but non-"no ack ids" error body.
type FailedRequestError struct {
	StatusCode int
	Body       []byte
}

func (e *FailedRequestError) Error() string {
	return fmt.Sprintf("pubsub: request failed with status %d: %s", e.StatusCode, string(e.Body))
}

// ClassifyError implements the consumer-path classification rule: a
// broker error whose message is literally "No ack ids specified."
// becomes ErrNoAckIds, and everything else becomes UnknownError. The
// producer path uses ClassifyProducerError instead.
func ClassifyError(statusCode int, message, status string, code int, body []byte) error {
	if message == noAckIdsMessage {
		return ErrNoAckIds
	}
	return &UnknownError{StatusCode: statusCode, Status: status, Message: message, Body: body}
}

// ClassifyProducerError is ClassifyError's producer-path counterpart:
// the producer surfaces FailedRequestError rather than UnknownError for
// non-ack-related failures, since "no ack ids" cannot occur on publish.
func ClassifyProducerError(statusCode int, body []byte) error {
	return &FailedRequestError{StatusCode: statusCode, Body: body}
}
