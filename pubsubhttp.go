package pubsubhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zpiroux/pubsubhttp/consumer"
	"github.com/zpiroux/pubsubhttp/internal/auth"
	"github.com/zpiroux/pubsubhttp/internal/transport"
	"github.com/zpiroux/pubsubhttp/pkg/notify"
	"github.com/zpiroux/pubsubhttp/producer"
)

// Error values returned by this module's scoped constructors. Error
// matching can be done with errors.Is due to wrapping.
var (
	ErrConfigNotInitialized = errors.New("pubsubhttp: Config needs to be created with NewConfig()")
	ErrMissingProjectID     = errors.New("pubsubhttp: ProjectID is required")
	ErrMissingTopic         = errors.New("pubsubhttp: Topic is required")
	ErrMissingSubscription  = errors.New("pubsubhttp: Subscription is required")
)

// Producer publishes records of payload type A to a single topic.
type Producer[A any] = producer.Producer[A]

// Subscriber streams records pulled from a single subscription.
type Subscriber = consumer.Subscriber

// Record is a received message paired with its ack/nack/extendDeadline
// effects.
type Record = consumer.Record

// OutboundRecord is one record to publish: payload, attributes, and a
// client-chosen uniqueId surfaced as the wire messageId.
type OutboundRecord[A any] = producer.Record[A]

func buildAuthorizer(ctx context.Context, config *Config, httpClient transport.HTTPClient, notifier *notify.Notifier) (auth.Authorizer, func(), error) {
	if config.IsEmulator {
		return auth.NoAuthAuthorizer{}, func() {}, nil
	}

	var provider auth.TokenProvider
	if len(config.Auth.ServiceAccountJSON) > 0 {
		sa, err := auth.ParseServiceAccountJSON(config.Auth.ServiceAccountJSON)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsubhttp: failed to parse service account: %w", err)
		}
		signer := auth.NewSigner(sa.PrivateKey, sa.Email, httpClient, notifier)
		provider = auth.NewServiceAccountProvider(signer)
	} else {
		provider = auth.NewMetadataProvider(httpClient)
	}

	cached, err := auth.NewCachedTokenProvider(ctx, auth.CachedConfig{
		Provider:           provider,
		SafetyPeriod:       config.Auth.SafetyPeriod,
		RetryDelay:         config.Auth.RetryDelay,
		RetryNextDelay:     config.Auth.RetryNextDelay,
		RetryMaxAttempts:   config.Auth.RetryMaxAttempts,
		OnRefreshSuccess:   config.Auth.OnRefreshSuccess,
		OnRefreshError:     config.Auth.OnRefreshError,
		OnRetriesExhausted: config.Auth.OnRetriesExhausted,
		Notifier:           notifier,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pubsubhttp: failed to start token provider: %w", err)
	}

	return auth.NewTokenAuthorizer(cached), cached.Close, nil
}

// NewProducer opens a Producer for config.Topic, acquiring a token
// provider (unless config.IsEmulator) and starting its background
// refresh task. The returned close function cancels that task and must
// be called once the producer is no longer needed.
func NewProducer[A any](ctx context.Context, config *Config, encoder MessageEncoder[A], httpClient transport.HTTPClient) (*Producer[A], func() error, error) {
	if config == nil {
		return nil, nil, ErrConfigNotInitialized
	}
	if config.ProjectID == "" {
		return nil, nil, ErrMissingProjectID
	}
	if config.Topic == "" {
		return nil, nil, ErrMissingTopic
	}
	config.setDefaults()

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	notifier := notify.New(nil, nil, 1, "pubsubhttp.producer", config.Topic)

	authorizer, closeAuth, err := buildAuthorizer(ctx, config, httpClient, notifier)
	if err != nil {
		return nil, nil, err
	}

	p := producer.New(config.Host, config.Port, config.ProjectID, config.Topic, encoder, httpClient, authorizer)

	closeFn := func() error {
		closeAuth()
		return nil
	}
	return p, closeFn, nil
}

// NewSubscriber opens a Subscriber for config.Subscription, acquiring a
// token provider (unless config.IsEmulator) and starting the pull loop
// and ack/nack batchers. The returned close function cancels all
// background tasks and must be called once the subscriber is no longer
// needed.
func NewSubscriber(ctx context.Context, config *Config, httpClient transport.HTTPClient) (*Subscriber, func() error, error) {
	if config == nil {
		return nil, nil, ErrConfigNotInitialized
	}
	if config.ProjectID == "" {
		return nil, nil, ErrMissingProjectID
	}
	if config.Subscription == "" {
		return nil, nil, ErrMissingSubscription
	}
	config.setDefaults()

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	notifier := notify.New(nil, nil, 1, "pubsubhttp.subscriber", config.Subscription)

	authorizer, closeAuth, err := buildAuthorizer(ctx, config, httpClient, notifier)
	if err != nil {
		return nil, nil, err
	}

	reader := consumer.NewReader(config.Host, config.Port, config.ProjectID, config.Subscription, httpClient, authorizer)

	sub := consumer.NewSubscriber(ctx, reader, consumer.Config{
		ReadMaxMessages:         config.Consumer.ReadMaxMessages,
		ReadReturnImmediately:   config.Consumer.ReadReturnImmediately,
		ReadConcurrency:         config.Consumer.ReadConcurrency,
		AcknowledgeBatchSize:    config.Consumer.AcknowledgeBatchSize,
		AcknowledgeBatchLatency: config.Consumer.AcknowledgeBatchLatency,
		OnError:                config.Consumer.OnError,
	})

	closeFn := func() error {
		sub.Close()
		closeAuth()
		return nil
	}
	return sub, closeFn, nil
}
