package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/cuongbtq/content-orchestrator/internal/domain"
	"github.com/cuongbtq/content-orchestrator/internal/ports"
)

// TaskService submits and polls tasks on a generation or localization backend
type TaskService struct {
	client *Client
}

var (
	_ ports.GenerationService   = (*TaskService)(nil)
	_ ports.LocalizationService = (*TaskService)(nil)
)

// NewTaskService creates a new TaskService instance
func NewTaskService(client *Client) *TaskService {
	return &TaskService{client: client}
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

type pollResponse struct {
	Status    string         `json:"status"`
	Progress  float64        `json:"progress"`
	Artifact  map[string]any `json:"artifact"`
	ErrorKind string         `json:"error_kind"`
	Message   string         `json:"message"`
}

func (s *TaskService) Submit(ctx context.Context, payload map[string]any) (string, error) {
	var resp submitResponse
	if err := s.client.do(ctx, http.MethodPost, "/tasks", nil, map[string]any{"payload": payload}, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", ports.NewCollaboratorError(domain.ErrorKindUnknown, errors.New("submit response carried no task_id"))
	}
	return resp.TaskID, nil
}

func (s *TaskService) Poll(ctx context.Context, taskID string) (ports.PollResult, error) {
	var resp pollResponse
	if err := s.client.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, nil, &resp); err != nil {
		return ports.PollResult{}, err
	}

	result := ports.PollResult{
		Progress: resp.Progress,
		Artifact: resp.Artifact,
		Message:  resp.Message,
	}
	switch resp.Status {
	case "done", "succeeded", "completed":
		result.Status = ports.PollDone
	case "failed", "error":
		result.Status = ports.PollFailed
		result.ErrorKind = domain.ParseErrorKind(resp.ErrorKind)
	default:
		result.Status = ports.PollPending
	}
	return result, nil
}

// Ledger registers content hashes on the blockchain gateway
type Ledger struct {
	client *Client
}

var _ ports.BlockchainLedger = (*Ledger)(nil)

// NewLedger creates a new Ledger instance
func NewLedger(client *Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) Register(ctx context.Context, hash string) (ports.Registration, error) {
	var resp struct {
		TxID      string    `json:"tx_id"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := l.client.do(ctx, http.MethodPost, "/registrations", nil, map[string]string{"hash": hash}, &resp); err != nil {
		return ports.Registration{}, err
	}
	return ports.Registration{TxID: resp.TxID, Timestamp: resp.Timestamp.UTC()}, nil
}

func (l *Ledger) Verify(ctx context.Context, hash string) (bool, error) {
	var resp struct {
		Verified bool `json:"verified"`
	}
	if err := l.client.do(ctx, http.MethodGet, "/registrations/"+url.PathEscape(hash), nil, nil, &resp); err != nil {
		return false, err
	}
	return resp.Verified, nil
}

// Engagement reads historical engagement windows
type Engagement struct {
	client *Client
}

var _ ports.EngagementSource = (*Engagement)(nil)

// NewEngagement creates a new Engagement instance
func NewEngagement(client *Client) *Engagement {
	return &Engagement{client: client}
}

// Query reports ports.ErrUnavailable whenever the source cannot answer
func (e *Engagement) Query(ctx context.Context, region, platform string) ([]ports.EngagementWindow, error) {
	var resp struct {
		Windows []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
			Score float64   `json:"score"`
		} `json:"windows"`
	}

	q := url.Values{}
	q.Set("region", region)
	q.Set("platform", platform)
	if err := e.client.do(ctx, http.MethodGet, "/engagement?"+q.Encode(), nil, nil, &resp); err != nil {
		return nil, errors.Join(ports.ErrUnavailable, err)
	}

	out := make([]ports.EngagementWindow, 0, len(resp.Windows))
	for _, w := range resp.Windows {
		out = append(out, ports.EngagementWindow{Start: w.Start, End: w.End, Score: w.Score})
	}
	return out, nil
}

// Poster publishes content through the social gateway
type Poster struct {
	client *Client
}

var _ ports.PostingService = (*Poster)(nil)

// NewPoster creates a new Poster instance
func NewPoster(client *Client) *Poster {
	return &Poster{client: client}
}

// Post sends the post id as idempotency key so a retried call cannot double-publish
func (p *Poster) Post(ctx context.Context, req ports.PostRequest) (string, error) {
	var resp struct {
		PostURL string `json:"post_url"`
	}
	body := map[string]string{
		"post_id":    req.PostID,
		"content_id": req.ContentID,
		"platform":   req.Platform,
		"region":     req.Region,
	}
	headers := map[string]string{"Idempotency-Key": req.PostID}
	if err := p.client.do(ctx, http.MethodPost, "/posts", headers, body, &resp); err != nil {
		return "", err
	}
	return resp.PostURL, nil
}

// Notifier delivers user notifications through a webhook
type Notifier struct {
	client *Client
}

var _ ports.NotificationSink = (*Notifier)(nil)

// NewNotifier creates a new Notifier instance
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Notify(ctx context.Context, userID, message string) error {
	return n.client.do(ctx, http.MethodPost, "/notifications", nil, map[string]string{
		"user_id": userID,
		"message": message,
	}, nil)
}
