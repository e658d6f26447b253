package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/pact/pkg/api"
	"github.com/Mindburn-Labs/pact/pkg/chain"
	"github.com/Mindburn-Labs/pact/pkg/commitment"
	"github.com/Mindburn-Labs/pact/pkg/conversation"
	"github.com/Mindburn-Labs/pact/pkg/dispatch"
	"github.com/Mindburn-Labs/pact/pkg/escrow"
	"github.com/Mindburn-Labs/pact/pkg/events"
	"github.com/Mindburn-Labs/pact/pkg/journal"
	"github.com/Mindburn-Labs/pact/pkg/reliability"
	"github.com/Mindburn-Labs/pact/pkg/store"
	"github.com/Mindburn-Labs/pact/pkg/sweep"
)

const adminSecret = "test-admin-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ledger := chain.NewDevLedger(nil)
	wallets := chain.NewWallets(ledger)
	dir := escrow.NewDirectory(ledger, journal.New(), nil)
	rel := reliability.NewLedger(reliability.NewMemoryStore(), reliability.DefaultConfig())
	emitter := events.NewEmitter(events.NewMemoryOutbox(), nil)
	st := store.NewMemory()
	engine := commitment.NewEngine(st, dir, ledger, wallets, rel, emitter, nil)
	conv := conversation.NewManager(conversation.NewMemoryStore(), 10*time.Minute, nil)
	dispatcher := dispatch.NewDispatcher(engine, conv, nil)
	sweeper := sweep.New(engine, st, time.Minute, nil)

	srv := api.NewServer(dispatcher, sweeper, api.NewSenderRateLimiter(100, 100), api.NewAdminAuth(adminSecret), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postWebhook(t *testing.T, ts *httptest.Server, from, text string) (*http.Response, api.WebhookResponse) {
	t.Helper()
	body, err := json.Marshal(api.WebhookRequest{From: from, Text: text})
	require.NoError(t, err)

	resp, err := ts.Client().Post(ts.URL+"/v1/webhook", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out api.WebhookResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestWebhookRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	resp, out := postWebhook(t, ts, "+15550000001", "/lock create Goa Trip 500 5 7")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out.Reply, "commitment created")
	assert.Contains(t, out.Reply, "#1")

	resp, out = postWebhook(t, ts, "+15550000001", "/status 1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out.Reply, "Goa Trip")
}

func TestWebhookValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", "{nope"},
		{"missing text", `{"from":"+15550000001"}`},
		{"missing from", `{"text":"help"}`},
		{"bad phone", `{"from":"not-a-number","text":"help"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := ts.Client().Post(ts.URL+"/v1/webhook", "application/json", bytes.NewBufferString(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
		})
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/v1/webhook")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAdminSweep(t *testing.T) {
	ts := newTestServer(t)

	// Without a token the endpoint is closed.
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/admin/sweep", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With a valid token an empty pass reports zeroes.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(adminSecret))
	require.NoError(t, err)

	req, err = http.NewRequest(http.MethodPost, ts.URL+"/v1/admin/sweep", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report sweep.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Zero(t, report.Released)
	assert.Zero(t, report.Failed)
}

func TestWebhookRateLimit(t *testing.T) {
	ledger := chain.NewDevLedger(nil)
	wallets := chain.NewWallets(ledger)
	dir := escrow.NewDirectory(ledger, journal.New(), nil)
	rel := reliability.NewLedger(reliability.NewMemoryStore(), reliability.DefaultConfig())
	emitter := events.NewEmitter(events.NewMemoryOutbox(), nil)
	st := store.NewMemory()
	engine := commitment.NewEngine(st, dir, ledger, wallets, rel, emitter, nil)
	conv := conversation.NewManager(conversation.NewMemoryStore(), 10*time.Minute, nil)
	dispatcher := dispatch.NewDispatcher(engine, conv, nil)
	sweeper := sweep.New(engine, st, time.Minute, nil)

	// Tight limiter: burst of 1 per sender.
	srv := api.NewServer(dispatcher, sweeper, api.NewSenderRateLimiter(0.1, 1), api.NewAdminAuth(adminSecret), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, _ := postWebhook(t, ts, "+15550000001", "help")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postWebhook(t, ts, "+15550000001", "help")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Other senders are unaffected.
	resp, _ = postWebhook(t, ts, "+15550000002", "help")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
