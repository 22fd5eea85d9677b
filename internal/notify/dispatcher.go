package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"maestro/internal/domain"
	"maestro/internal/repo"
)

const (
	defaultDispatchSchedule = "@every 10s"
	defaultWebhookTimeout   = 5 * time.Second
	defaultDispatchBatch    = 50
)

// Dispatcher posts unsent notifications to a webhook and marks them sent.
// Delivery stops at the first failure of a run; the rest is retried on the
// next run.
type Dispatcher struct {
	Repo      repo.Repo
	URL       string
	Secret    string
	Timeout   time.Duration
	BatchSize int
	Client    *http.Client
	Log       logrus.FieldLogger
	Now       func() time.Time

	mu sync.Mutex
}

type webhookNotification struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Kind          string         `json:"kind"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Context       map[string]any `json:"context,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

func (d *Dispatcher) log() logrus.FieldLogger {
	if d.Log != nil {
		return d.Log
	}
	return logrus.StandardLogger()
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RunOnce delivers one batch and returns how many notifications were sent.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if strings.TrimSpace(d.URL) == "" {
		return 0, nil
	}
	batch := d.BatchSize
	if batch <= 0 {
		batch = defaultDispatchBatch
	}
	pending, err := d.Repo.ListNotifications(ctx, repo.NotificationFilter{UnsentOnly: true, Limit: batch})
	if err != nil {
		return 0, fmt.Errorf("fetch notifications: %w", err)
	}
	sent := 0
	for _, n := range pending {
		if err := d.post(ctx, n); err != nil {
			return sent, fmt.Errorf("deliver notification %s: %w", n.ID, err)
		}
		if err := d.Repo.MarkNotificationSent(ctx, n.ID, d.now().UTC().Format(time.RFC3339)); err != nil {
			return sent, fmt.Errorf("mark notification %s sent: %w", n.ID, err)
		}
		sent++
	}
	return sent, nil
}

func (d *Dispatcher) post(ctx context.Context, n domain.Notification) error {
	data, err := json.Marshal(webhookNotification{
		ID:            n.ID,
		UserID:        n.UserID,
		Kind:          n.Kind,
		Title:         n.Title,
		Message:       n.Message,
		Context:       n.Context,
		CorrelationID: n.CorrelationID,
		CreatedAt:     n.CreatedAt,
	})
	if err != nil {
		return err
	}
	client := d.Client
	if client == nil {
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = defaultWebhookTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Maestro-Notification", n.Kind)
	req.Header.Set("X-Maestro-Delivery", n.ID)
	if strings.TrimSpace(d.Secret) != "" {
		req.Header.Set("X-Maestro-Secret", d.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Schedule registers RunOnce on a cron scheduler and starts it. Stop the
// returned scheduler to end dispatching.
func (d *Dispatcher) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	if spec == "" {
		spec = defaultDispatchSchedule
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		n, err := d.RunOnce(runCtx)
		if err != nil {
			d.log().WithError(err).Warn("notification dispatch failed")
		}
		if n > 0 {
			d.log().WithField("sent", n).Debug("notifications dispatched")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	d.log().WithField("schedule", spec).Info("notification dispatcher started")
	return c, nil
}
