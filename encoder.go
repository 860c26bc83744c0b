package pubsubhttp

import "github.com/zpiroux/pubsubhttp/producer"

// MessageEncoder turns a caller-chosen payload type A into the bytes
// published on the wire. Implement it for any payload type a Producer[A]
// should accept.
type MessageEncoder[A any] = producer.MessageEncoder[A]

// MessageDecoder turns raw received bytes into a caller-chosen type A.
// Subscriber itself is not generic (it hands callers the raw
// PubsubMessage bytes); MessageDecoder exists for callers who want a
// typed decode step on top of Subscriber.Records(), mirroring
// MessageEncoder on the produce side.
type MessageDecoder[A any] interface {
	Decode(data []byte) (A, error)
}

// BytesEncoder is a no-op MessageEncoder[[]byte]: the payload is
// already the wire bytes.
type BytesEncoder struct{}

func (BytesEncoder) Encode(data []byte) ([]byte, error) { return data, nil }

// BytesDecoder is a no-op MessageDecoder[[]byte]: callers that want the
// raw message bytes rather than a typed decode.
type BytesDecoder struct{}

func (BytesDecoder) Decode(data []byte) ([]byte, error) { return data, nil }
