package pubsubhttp_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pubsubhttp "github.com/zpiroux/pubsubhttp"
)

type fixedEncoder struct {
	data []byte
}

func (e fixedEncoder) Encode(string) ([]byte, error) { return e.data, nil }

func emulatorConfig(t *testing.T, srv *httptest.Server) *pubsubhttp.Config {
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	host := u.Hostname()
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := pubsubhttp.NewConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.IsEmulator = true
	cfg.ProjectID = "p"
	return cfg
}

// Scenario 1: publish one.
func TestEndToEnd_PublishOne(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	var gotAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/projects/p/topics/t:publish", func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messageIds":["server-1"]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := emulatorConfig(t, srv)
	cfg.Topic = "t"

	p, closeFn, err := pubsubhttp.NewProducer[string](context.Background(), cfg, fixedEncoder{data: []byte{0x01, 0x02}}, srv.Client())
	require.NoError(t, err)
	defer closeFn()

	id, err := p.Produce(context.Background(), pubsubhttp.OutboundRecord[string]{
		Data:       "x",
		UniqueID:   "u1",
		Attributes: map[string]string{},
	})
	require.NoError(t, err)

	assert.Equal(t, "server-1", id)
	assert.Equal(t, "/v1/projects/p/topics/t:publish", gotPath)
	assert.Empty(t, gotAuth)

	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	m := messages[0].(map[string]any)
	assert.Equal(t, "AQI=", m["data"])
	assert.Equal(t, "u1", m["messageId"])
}

// Scenario 2: pull with no messages.
func TestEndToEnd_PullWithNoMessages(t *testing.T) {
	var pullCount int32
	var mu sync.Mutex

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/projects/p/subscriptions/s:pull", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pullCount++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := emulatorConfig(t, srv)
	cfg.Subscription = "s"
	cfg.Consumer.ReadReturnImmediately = true

	ctx, cancel := context.WithCancel(context.Background())
	sub, closeFn, err := pubsubhttp.NewSubscriber(ctx, cfg, srv.Client())
	require.NoError(t, err)
	defer func() { cancel(); closeFn() }()

	select {
	case rec, ok := <-sub.Records():
		t.Fatalf("expected no records, got ok=%v rec=%+v", ok, rec)
	case <-time.After(100 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, pullCount, int32(1))
}

// Scenario 3: ack batching.
func TestEndToEnd_AckBatching(t *testing.T) {
	var pullMu sync.Mutex
	firstPull := true

	var ackBody map[string]any
	ackCh := make(chan struct{}, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/projects/p/subscriptions/s:pull", func(w http.ResponseWriter, r *http.Request) {
		pullMu.Lock()
		isFirst := firstPull
		firstPull = false
		pullMu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if isFirst {
			_, _ = w.Write([]byte(`{"receivedMessages":[
				{"ackId":"a1","message":{"data":"AQ==","messageId":"m1"}},
				{"ackId":"a2","message":{"data":"Ag==","messageId":"m2"}},
				{"ackId":"a3","message":{"data":"Aw==","messageId":"m3"}}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/v1/projects/p/subscriptions/s:acknowledge", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &ackBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
		select {
		case ackCh <- struct{}{}:
		default:
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := emulatorConfig(t, srv)
	cfg.Subscription = "s"
	cfg.Consumer.ReadReturnImmediately = true
	cfg.Consumer.AcknowledgeBatchSize = 100
	cfg.Consumer.AcknowledgeBatchLatency = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	sub, closeFn, err := pubsubhttp.NewSubscriber(ctx, cfg, srv.Client())
	require.NoError(t, err)
	defer func() { cancel(); closeFn() }()

	var acked []string
	for i := 0; i < 3; i++ {
		rec := <-sub.Records()
		acked = append(acked, string(rec.AckID))
		rec.Ack()
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-ackCh:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ack batch")
	}

	ids, ok := ackBody["ackIds"].([]any)
	require.True(t, ok)
	require.Len(t, ids, 3)
	for i, id := range ids {
		assert.Equal(t, acked[i], id.(string))
	}
}

// Scenario 4: ack error is swallowed, stream continues.
func TestEndToEnd_AckErrorSwallowed(t *testing.T) {
	var pullCount int32
	var mu sync.Mutex

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/projects/p/subscriptions/s:pull", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n := pullCount
		pullCount++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if n == 0 {
			_, _ = w.Write([]byte(`{"receivedMessages":[{"ackId":"a1","message":{"data":"AQ==","messageId":"m1"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"receivedMessages":[{"ackId":"a2","message":{"data":"Ag==","messageId":"m2"}}]}`))
	})
	mux.HandleFunc("/v1/projects/p/subscriptions/s:acknowledge", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"No ack ids specified.","status":"INVALID_ARGUMENT","code":400}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := emulatorConfig(t, srv)
	cfg.Subscription = "s"
	cfg.Consumer.ReadReturnImmediately = true
	cfg.Consumer.AcknowledgeBatchLatency = 10 * time.Millisecond

	var handlerErrs []error
	var errMu sync.Mutex
	cfg.Consumer.OnError = func(err error) {
		errMu.Lock()
		handlerErrs = append(handlerErrs, err)
		errMu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub, closeFn, err := pubsubhttp.NewSubscriber(ctx, cfg, srv.Client())
	require.NoError(t, err)
	defer func() { cancel(); closeFn() }()

	rec := <-sub.Records()
	rec.Ack()

	require.Eventually(t, func() bool {
		errMu.Lock()
		defer errMu.Unlock()
		return len(handlerErrs) > 0
	}, time.Second, 5*time.Millisecond)

	// Stream keeps going despite the ack batch failure.
	select {
	case _, ok := <-sub.Records():
		if !ok {
			t.Fatal("stream stopped after ack error")
		}
	case <-time.After(time.Second):
		t.Fatal("stream stopped after ack error")
	}
}

// Scenario 6: emulator bypass.
func TestEndToEnd_EmulatorBypassesAuthAndUsesHTTP(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/projects/p/topics/t:publish", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messageIds":["x"]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	require.True(t, strings.HasPrefix(srv.URL, "http://"))

	cfg := emulatorConfig(t, srv)
	cfg.Topic = "t"

	p, closeFn, err := pubsubhttp.NewProducer[string](context.Background(), cfg, fixedEncoder{data: []byte("x")}, srv.Client())
	require.NoError(t, err)
	defer closeFn()

	_, err = p.Produce(context.Background(), pubsubhttp.OutboundRecord[string]{Data: "x", UniqueID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}
