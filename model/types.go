// Package model holds the Pub/Sub REST v1 wire shapes and the domain
// types built on top of them: access tokens, received messages, outbound
// records, and the internal record handed downstream by a subscriber.
package model

import (
	"context"
	"time"
)

// ProjectID, Topic and Subscription are opaque non-empty strings forming
// REST path segments; they are not validated beyond being non-empty.
type ProjectID string
type Topic string
type Subscription string

// AccessToken is a bearer credential valid for ExpiresInSeconds from the
// moment it was issued. Token is opaque to this package.
type AccessToken struct {
	Token            string `json:"access_token"`
	ExpiresInSeconds int64  `json:"expires_in"`
}

// Empty reports whether the token carries no credential, the sentinel
// used by the no-auth provider and by a failed exchange.
func (t AccessToken) Empty() bool {
	return t.Token == ""
}

// AckID is an opaque string identifying a specific delivery attempt.
// It is only meaningful to the broker that issued it.
type AckID string

// PubsubMessage is a message as received from, or destined for, the
// Pub/Sub REST API. Data is raw bytes; wire encoding to/from base64 is
// handled at the JSON boundary in wire.go.
type PubsubMessage struct {
	Data        []byte
	Attributes  map[string]string
	MessageID   string
	PublishTime time.Time
	OrderingKey string
}

// ReceivedMessage pairs a broker-issued AckID with the message it
// identifies.
type ReceivedMessage struct {
	AckID   AckID
	Message PubsubMessage
}

// PullResponse is the ordered sequence of messages returned by a single
// pull request; it may be empty.
type PullResponse []ReceivedMessage

// Record is an outbound message: caller-supplied payload of type A,
// attributes, and a client-chosen UniqueID surfaced to the broker as the
// wire "messageId" field.
type Record[A any] struct {
	Data       A
	Attributes map[string]string
	UniqueID   string
}

// AckEffect and NackEffect are zero-argument idempotent-from-the-caller's
// side operations; ExtendDeadlineEffect takes the deadline to request and
// is a synchronous HTTP call, hence the context.
type AckEffect func()
type NackEffect func()
type ExtendDeadlineEffect func(ctx context.Context, d time.Duration) error

// InternalRecord is the downstream-facing shape yielded by a Subscriber:
// the received message plus the three operations a consumer may invoke
// on it. Ack and Nack are non-blocking (they enqueue); ExtendDeadline is
// synchronous. Ack and Nack are not deduplicated against each other:
// calling both sends the same ackId to the broker twice, so a caller
// invokes at most one of them per record.
type InternalRecord struct {
	Value          PubsubMessage
	AckID          AckID
	Ack            AckEffect
	Nack           NackEffect
	ExtendDeadline ExtendDeadlineEffect
}
