package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// pullRequest is the body of a :pull request.
type pullRequest struct {
	ReturnImmediately bool `json:"returnImmediately"`
	MaxMessages       int  `json:"maxMessages"`
}

// pubsubMessageWire is the wire shape of a PubsubMessage: Data is
// base64-encoded ASCII text on the wire, PublishTime is RFC3339.
type pubsubMessageWire struct {
	Data        string            `json:"data"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	MessageID   string            `json:"messageId,omitempty"`
	PublishTime string            `json:"publishTime,omitempty"`
	OrderingKey string            `json:"orderingKey,omitempty"`
}

type receivedMessageWire struct {
	AckID   string            `json:"ackId"`
	Message pubsubMessageWire `json:"message"`
}

// pullResponseWire is the wire shape of a pull response body.
type pullResponseWire struct {
	ReceivedMessages []receivedMessageWire `json:"receivedMessages"`
}

// ackRequest is the body of an :acknowledge request.
type ackRequest struct {
	AckIDs []string `json:"ackIds"`
}

// modifyAckDeadlineRequest is the body of a :modifyAckDeadline request,
// used for both nack (deadline 0) and explicit deadline extension.
type modifyAckDeadlineRequest struct {
	AckIDs             []string `json:"ackIds"`
	AckDeadlineSeconds int      `json:"ackDeadlineSeconds"`
}

// publishMessageWire is a single message in a :publish request body.
type publishMessageWire struct {
	Data       string            `json:"data"`
	MessageID  string            `json:"messageId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type publishRequest struct {
	Messages []publishMessageWire `json:"messages"`
}

type publishResponse struct {
	MessageIDs []string `json:"messageIds"`
}

// errorDetail and errorResponse describe the Pub/Sub REST error body
// returned on 4xx/5xx: {"error":{"message":..., "status":..., "code":...}}.
type errorDetail struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
}

type errorResponse struct {
	Error *errorDetail `json:"error"`
}

// EncodePullRequest builds the JSON body for a :pull request.
func EncodePullRequest(returnImmediately bool, maxMessages int) ([]byte, error) {
	return json.Marshal(pullRequest{ReturnImmediately: returnImmediately, MaxMessages: maxMessages})
}

// DecodePullResponse parses a :pull response body into a PullResponse,
// base64-decoding each message's data and parsing its publish time.
func DecodePullResponse(body []byte) (PullResponse, error) {
	var wire pullResponseWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("unparseable pull response body: %w", err)
	}

	out := make(PullResponse, 0, len(wire.ReceivedMessages))
	for _, rm := range wire.ReceivedMessages {
		data, err := base64.StdEncoding.DecodeString(rm.Message.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 message data for ackId %s: %w", rm.AckID, err)
		}

		var publishTime time.Time
		if rm.Message.PublishTime != "" {
			publishTime, err = time.Parse(time.RFC3339Nano, rm.Message.PublishTime)
			if err != nil {
				return nil, fmt.Errorf("invalid publishTime %q: %w", rm.Message.PublishTime, err)
			}
		}

		out = append(out, ReceivedMessage{
			AckID: AckID(rm.AckID),
			Message: PubsubMessage{
				Data:        data,
				Attributes:  rm.Message.Attributes,
				MessageID:   rm.Message.MessageID,
				PublishTime: publishTime,
				OrderingKey: rm.Message.OrderingKey,
			},
		})
	}
	return out, nil
}

// EncodeAckRequest builds the JSON body for an :acknowledge request.
func EncodeAckRequest(ackIDs []AckID) ([]byte, error) {
	return json.Marshal(ackRequest{AckIDs: ackIDStrings(ackIDs)})
}

// EncodeModifyAckDeadlineRequest builds the JSON body for a
// :modifyAckDeadline request, used for both nack (deadlineSeconds=0)
// and deadline extension.
func EncodeModifyAckDeadlineRequest(ackIDs []AckID, deadlineSeconds int) ([]byte, error) {
	return json.Marshal(modifyAckDeadlineRequest{
		AckIDs:             ackIDStrings(ackIDs),
		AckDeadlineSeconds: deadlineSeconds,
	})
}

func ackIDStrings(ackIDs []AckID) []string {
	out := make([]string, len(ackIDs))
	for i, id := range ackIDs {
		out[i] = string(id)
	}
	return out
}

// EncodePublishRequest builds the JSON body for a :publish request. Each
// record's data must already be encoded to bytes by the caller-supplied
// MessageEncoder; this function only applies the base64 wire wrapping.
func EncodePublishRequest(messages []PublishMessage) ([]byte, error) {
	wire := make([]publishMessageWire, len(messages))
	for i, m := range messages {
		wire[i] = publishMessageWire{
			Data:       base64.StdEncoding.EncodeToString(m.Data),
			MessageID:  m.UniqueID,
			Attributes: m.Attributes,
		}
	}
	return json.Marshal(publishRequest{Messages: wire})
}

// PublishMessage is the already-encoded form of a Record, ready for
// base64 wrapping and JSON encoding.
type PublishMessage struct {
	Data       []byte
	UniqueID   string
	Attributes map[string]string
}

// DecodePublishResponse parses a :publish response body into the
// server-assigned message IDs.
func DecodePublishResponse(body []byte) ([]string, error) {
	var wire publishResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("unparseable publish response body: %w", err)
	}
	return wire.MessageIDs, nil
}

// ParseErrorBody parses a non-2xx response body into a PubSubError.
// On the consumer path (isProducer=false) it classifies into
// ErrNoAckIds or UnknownError; on the producer path it classifies into
// FailedRequestError. A body that cannot be parsed as the Pub/Sub
// error shape at all becomes UnparseableBodyError regardless of path.
func ParseErrorBody(statusCode int, body []byte, isProducer bool) error {
	var wire errorResponse
	if err := json.Unmarshal(body, &wire); err != nil || wire.Error == nil {
		return &UnparseableBodyError{Raw: string(body)}
	}
	if isProducer {
		return ClassifyProducerError(statusCode, body)
	}
	return ClassifyError(statusCode, wire.Error.Message, wire.Error.Status, wire.Error.Code, body)
}
