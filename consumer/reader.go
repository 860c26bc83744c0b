// Package consumer implements the streaming subscriber half of the
// Pub/Sub HTTP client: a reader for the four subscription REST
// operations, and a Subscriber composing a pull loop with ack/nack
// batching.
package consumer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

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

// Reader talks to the four subscription REST endpoints: :pull,
// :acknowledge, :modifyAckDeadline (used for both nack and deadline
// extension).
type Reader struct {
	baseURL    string
	httpClient transport.HTTPClient
	authorizer auth.Authorizer
}

// NewReader builds a Reader for the given subscription.
func NewReader(host string, port int, project, subscription string, httpClient transport.HTTPClient, authorizer auth.Authorizer) *Reader {
	return &Reader{
		baseURL:    pubsuburl.Subscription(host, port, project, subscription),
		httpClient: httpClient,
		authorizer: authorizer,
	}
}

// Read issues one :pull request and returns its (possibly empty) result.
func (r *Reader) Read(ctx context.Context, maxMessages int, returnImmediately bool) (model.PullResponse, error) {
	reqBody, err := model.EncodePullRequest(returnImmediately, maxMessages)
	if err != nil {
		return nil, fmt.Errorf("consumer: failed to encode pull request: %w", err)
	}

	respBody, err := r.do(ctx, r.baseURL+":pull", reqBody, false)
	if err != nil {
		return nil, err
	}

	pullResp, err := model.DecodePullResponse(respBody)
	if err != nil {
		log.Errorf("consumer: invalid pull response body: %v, raw: %s", err, string(respBody))
		return nil, err
	}
	return pullResp, nil
}

// Ack acknowledges the given ackIds. The broker rejects an empty batch
// with ErrNoAckIds; callers (the ack batcher) must never close an empty
// group, so seeing that error here indicates a bug upstream.
func (r *Reader) Ack(ctx context.Context, ackIDs []model.AckID) error {
	reqBody, err := model.EncodeAckRequest(ackIDs)
	if err != nil {
		return fmt.Errorf("consumer: failed to encode ack request: %w", err)
	}
	_, err = r.do(ctx, r.baseURL+":acknowledge", reqBody, false)
	return err
}

// Nack is a :modifyAckDeadline call with ackDeadlineSeconds=0, the
// broker's semantic for an immediate nack.
func (r *Reader) Nack(ctx context.Context, ackIDs []model.AckID) error {
	return r.ModifyDeadline(ctx, ackIDs, 0)
}

// ModifyDeadline extends (or, with deadline 0, clears) the ack deadline
// for the given ackIds.
func (r *Reader) ModifyDeadline(ctx context.Context, ackIDs []model.AckID, deadlineSeconds int) error {
	reqBody, err := model.EncodeModifyAckDeadlineRequest(ackIDs, deadlineSeconds)
	if err != nil {
		return fmt.Errorf("consumer: failed to encode modifyAckDeadline request: %w", err)
	}
	_, err = r.do(ctx, r.baseURL+":modifyAckDeadline", reqBody, false)
	return err
}

func (r *Reader) do(ctx context.Context, url string, reqBody []byte, isProducer bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("consumer: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	req, err = r.authorizer.Authorize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("consumer: failed to authorize request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("consumer: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.ParseErrorBody(resp.StatusCode, body, isProducer)
	}
	return body, nil
}
