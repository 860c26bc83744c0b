// Package producer implements the HTTP publisher half of the Pub/Sub
// client: encode, base64-wrap, bundle into one publish request.
package producer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/teltech/logger"
	"github.com/zpiroux/pubsubhttp/internal/auth"
	"github.com/zpiroux/pubsubhttp/internal/pubsuburl"
	"github.com/zpiroux/pubsubhttp/internal/transport"
	"github.com/zpiroux/pubsubhttp/model"
)

var log *logger.Log

func init() {
	log = logger.New()
}

// MessageEncoder turns a caller-supplied payload of type A into the
// bytes that get base64-wrapped onto the wire. Encoder failure aborts
// the in-flight publish.
type MessageEncoder[A any] interface {
	Encode(data A) ([]byte, error)
}

// Record is one outbound message: payload, attributes, and a
// client-chosen uniqueId surfaced as the wire messageId (the broker
// assigns its own messageId on response).
type Record[A any] = model.Record[A]

// Producer publishes to a single topic.
type Producer[A any] struct {
	baseURL    string
	encoder    MessageEncoder[A]
	httpClient transport.HTTPClient
	authorizer auth.Authorizer
}

// New builds a Producer for the given topic.
func New[A any](host string, port int, project, topic string, encoder MessageEncoder[A], httpClient transport.HTTPClient, authorizer auth.Authorizer) *Producer[A] {
	return &Producer[A]{
		baseURL:    pubsuburl.Topic(host, port, project, topic),
		encoder:    encoder,
		httpClient: httpClient,
		authorizer: authorizer,
	}
}

// Produce publishes a single record and returns the server-assigned
// message id. It is ProduceMany with a singleton list, returning
// index 0 of the result.
func (p *Producer[A]) Produce(ctx context.Context, rec Record[A]) (string, error) {
	ids, err := p.ProduceMany(ctx, []Record[A]{rec})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// ProduceMany encodes and publishes a batch of records in a single
// publish request, returning the server-assigned message ids in
// response order.
func (p *Producer[A]) ProduceMany(ctx context.Context, recs []Record[A]) ([]string, error) {
	messages := make([]model.PublishMessage, len(recs))
	for i, rec := range recs {
		data, err := p.encoder.Encode(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("producer: failed to encode record %d: %w", i, err)
		}
		uniqueID := rec.UniqueID
		if uniqueID == "" {
			uniqueID = uuid.New().String()
		}
		messages[i] = model.PublishMessage{
			Data:       data,
			UniqueID:   uniqueID,
			Attributes: rec.Attributes,
		}
	}

	reqBody, err := model.EncodePublishRequest(messages)
	if err != nil {
		return nil, fmt.Errorf("producer: failed to encode publish request: %w", err)
	}

	respBody, err := p.do(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	ids, err := model.DecodePublishResponse(respBody)
	if err != nil {
		log.Errorf("producer: invalid publish response body: %v, raw: %s", err, string(respBody))
		return nil, err
	}
	return ids, nil
}

func (p *Producer[A]) do(ctx context.Context, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+":publish", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("producer: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	req, err = p.authorizer.Authorize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("producer: failed to authorize request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("producer: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.ParseErrorBody(resp.StatusCode, body, true)
	}
	return body, nil
}
