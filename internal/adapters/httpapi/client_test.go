package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
	"github.com/cuongbtq/content-orchestrator/internal/retry"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL + "/", Token: "secret", Timeout: 2 * time.Second})
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want domain.ErrorKind
	}{
		{http.StatusUnauthorized, domain.ErrorKindAuthentication},
		{http.StatusForbidden, domain.ErrorKindAuthentication},
		{http.StatusTooManyRequests, domain.ErrorKindRateLimited},
		{http.StatusRequestTimeout, domain.ErrorKindTimeout},
		{http.StatusGatewayTimeout, domain.ErrorKindTimeout},
		{http.StatusBadRequest, domain.ErrorKindInvalidInput},
		{http.StatusUnprocessableEntity, domain.ErrorKindInvalidInput},
		{http.StatusInternalServerError, domain.ErrorKindTransientNetwork},
		{http.StatusBadGateway, domain.ErrorKindTransientNetwork},
		{http.StatusServiceUnavailable, domain.ErrorKindTransientNetwork},
		{http.StatusTeapot, domain.ErrorKindUnknown},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.code))
		})
	}
}

func TestClient_ErrorsAreClassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	err := c.do(context.Background(), http.MethodGet, "/anything", nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindRateLimited, retry.Classify(err))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "slow down", statusErr.Body)
}

func TestClient_DeadlineIsTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.do(ctx, http.MethodGet, "/hang", nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindTimeout, retry.Classify(err))
}

func TestClient_SendsTokenAndHeaders(t *testing.T) {
	var gotAuth, gotKey string
	var gotBody map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"post_url": "https://example.test/p/1"})
	})

	url, err := NewPoster(c).Post(context.Background(), ports.PostRequest{
		PostID: "post-1", ContentID: "c-1", Platform: "youtube", Region: "US",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/p/1", url)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "post-1", gotKey)
	assert.Equal(t, "youtube", gotBody["platform"])
}

func TestTaskService_SubmitAndPoll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"task_id": "task-9"})
	})
	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "task-9":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "done", "progress": 1, "artifact": map[string]any{"video_ref": "s3://v"},
			})
		case "task-bad":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "failed", "error_kind": "invalid_input", "message": "bad prompt",
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "running", "progress": 0.4})
		}
	})
	svc := NewTaskService(newTestClient(t, mux.ServeHTTP))
	ctx := context.Background()

	id, err := svc.Submit(ctx, map[string]any{"prompt": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "task-9", id)

	res, err := svc.Poll(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ports.PollDone, res.Status)
	assert.Equal(t, "s3://v", res.Artifact["video_ref"])

	res, err = svc.Poll(ctx, "task-bad")
	require.NoError(t, err)
	assert.Equal(t, ports.PollFailed, res.Status)
	assert.Equal(t, domain.ErrorKindInvalidInput, res.ErrorKind)
	assert.Equal(t, "bad prompt", res.Message)

	res, err = svc.Poll(ctx, "task-other")
	require.NoError(t, err)
	assert.Equal(t, ports.PollPending, res.Status)
	assert.InDelta(t, 0.4, res.Progress, 1e-9)
}

func TestTaskService_SubmitWithoutTaskID(t *testing.T) {
	svc := NewTaskService(newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := svc.Submit(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindUnknown, retry.Classify(err))
}

func TestEngagement_Unavailable(t *testing.T) {
	src := NewEngagement(newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := src.Query(context.Background(), "US", "youtube")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrUnavailable)
}

func TestEngagement_Windows(t *testing.T) {
	start := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	var gotQuery string
	src := NewEngagement(newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{
			"windows": []map[string]any{{"start": start, "end": start.Add(2 * time.Hour), "score": 0.8}},
		})
	}))

	windows, err := src.Query(context.Background(), "US", "youtube")
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.True(t, windows[0].Start.Equal(start))
	assert.InDelta(t, 0.8, windows[0].Score, 1e-9)
	assert.Equal(t, "platform=youtube&region=US", gotQuery)
}

func TestLedger_RegisterAndVerify(t *testing.T) {
	ts := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /registrations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"tx_id": "0xabc", "timestamp": ts})
	})
	mux.HandleFunc("GET /registrations/{hash}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"verified": r.PathValue("hash") == "h1"})
	})
	ledger := NewLedger(newTestClient(t, mux.ServeHTTP))
	ctx := context.Background()

	reg, err := ledger.Register(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", reg.TxID)
	assert.True(t, reg.Timestamp.Equal(ts))

	ok, err := ledger.Verify(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Verify(ctx, "h2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotifier_AuthFailure(t *testing.T) {
	n := NewNotifier(newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := n.Notify(context.Background(), "u1", "hello")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindAuthentication, retry.Classify(err))
}
