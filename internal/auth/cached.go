package auth

import (
	"context"
	"time"

	"github.com/zpiroux/pubsubhttp/internal/refresh"
	"github.com/zpiroux/pubsubhttp/model"
	"github.com/zpiroux/pubsubhttp/pkg/notify"
)

// DefaultSafetyPeriod is how far ahead of a token's expiry
// CachedTokenProvider schedules its next refresh.
const DefaultSafetyPeriod = 4 * time.Minute

// CachedConfig parameterizes a CachedTokenProvider.
type CachedConfig struct {
	// Provider is the underlying TokenProvider whose tokens are cached
	// and proactively refreshed.
	Provider TokenProvider

	// SafetyPeriod controls how far ahead of expiry the next refresh is
	// scheduled: refresh happens at expiresIn - SafetyPeriod after the
	// token was issued. Defaults to DefaultSafetyPeriod if zero.
	SafetyPeriod time.Duration

	RetryDelay         time.Duration
	RetryNextDelay     func(prev time.Duration) time.Duration
	RetryMaxAttempts   int
	OnRefreshSuccess   func()
	OnRefreshError     func(err error)
	OnRetriesExhausted func(err error)

	Notifier *notify.Notifier
}

// CachedTokenProvider wraps another TokenProvider with a self-refreshing
// cache: reads are always fast and return the last successfully fetched
// token, refreshed proactively before it expires.
type CachedTokenProvider struct {
	value *refresh.Value[model.AccessToken]
}

// NewCachedTokenProvider synchronously fetches an initial token from
// cfg.Provider and starts the background refresh task. If the initial
// fetch fails, an error is returned and no provider is constructed.
func NewCachedTokenProvider(ctx context.Context, cfg CachedConfig) (*CachedTokenProvider, error) {
	safety := cfg.SafetyPeriod
	if safety <= 0 {
		safety = DefaultSafetyPeriod
	}

	rcfg := refresh.Config[model.AccessToken]{
		Refresh: func(ctx context.Context) (model.AccessToken, error) {
			return cfg.Provider.AccessToken(ctx)
		},
		RetryDelay:       cfg.RetryDelay,
		RetryNextDelay:   cfg.RetryNextDelay,
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		NextInterval: func(tok model.AccessToken) time.Duration {
			return time.Duration(tok.ExpiresInSeconds)*time.Second - safety
		},
	}

	if cfg.OnRefreshSuccess != nil {
		rcfg.OnRefreshSuccess = cfg.OnRefreshSuccess
	}
	if cfg.Notifier != nil {
		notifier := cfg.Notifier
		userOnErr := cfg.OnRefreshError
		rcfg.OnRefreshError = func(err error) {
			notifier.Notify(notify.LevelWarn, "token refresh failed: %v", err)
			if userOnErr != nil {
				userOnErr(err)
			}
		}
		userOnExhausted := cfg.OnRetriesExhausted
		rcfg.OnRetriesExhausted = func(err error) {
			notifier.Notify(notify.LevelError, "token refresh retries exhausted: %v", err)
			if userOnExhausted != nil {
				userOnExhausted(err)
			}
		}
	} else {
		rcfg.OnRefreshError = cfg.OnRefreshError
		rcfg.OnRetriesExhausted = cfg.OnRetriesExhausted
	}

	value, err := refresh.New(ctx, rcfg)
	if err != nil {
		return nil, err
	}
	return &CachedTokenProvider{value: value}, nil
}

// AccessToken returns the most recently cached token, without blocking.
func (p *CachedTokenProvider) AccessToken(context.Context) (model.AccessToken, error) {
	return p.value.Value(), nil
}

// Close cancels the background refresh task.
func (p *CachedTokenProvider) Close() {
	p.value.Close()
}
