package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"opsline/internal/config"
	"opsline/internal/domain"
	"opsline/internal/engine"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

type webhookDispatcher struct {
	engine   engine.Engine
	webhooks []config.WebhookConfig
	client   *http.Client
	logger   *slog.Logger
	mu       sync.Mutex
	cursors  map[int]int64
}

// StartWebhookDispatcher relays new events to the configured webhooks until
// ctx is cancelled. Each hook starts from the events appended after startup.
func StartWebhookDispatcher(ctx context.Context, e engine.Engine, logger *slog.Logger) {
	d := newWebhookDispatcher(e, logger)
	if d == nil {
		return
	}
	go d.run(ctx)
}

func newWebhookDispatcher(e engine.Engine, logger *slog.Logger) *webhookDispatcher {
	if e.Config == nil || len(e.Config.Webhooks) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &webhookDispatcher{
		engine:   e,
		webhooks: e.Config.Webhooks,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		logger:   logger,
		cursors:  make(map[int]int64),
	}
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(defaultWebhookInterval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	for i, hook := range d.webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		d.dispatchWebhook(ctx, i, hook)
	}
}

// dispatchWebhook posts matching events as one batch and advances the cursor
// only when the receiver accepts it.
func (d *webhookDispatcher) dispatchWebhook(ctx context.Context, idx int, hook config.WebhookConfig) {
	cursor := d.cursorFor(ctx, idx)
	events, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, cursor, domain.ScopeAll)
	if err != nil {
		d.logger.Error("webhook: fetch events failed", "webhook", hook.ID, "error", err)
		return
	}
	if len(events) == 0 {
		return
	}
	filter := newEventFilter(hook.Events)
	batch := make([]webhookEvent, 0, len(events))
	for _, evt := range events {
		if filter.match(evt.Type) {
			batch = append(batch, toWebhookEvent(evt))
		}
	}
	last := events[len(events)-1].ID
	if len(batch) == 0 {
		d.setCursor(idx, last)
		return
	}
	if err := d.postBatch(ctx, hook, batch); err != nil {
		d.logger.Warn("webhook: delivery failed", "webhook", hook.ID, "url", hook.URL, "error", err)
		return
	}
	d.setCursor(idx, last)
}

func (d *webhookDispatcher) cursorFor(ctx context.Context, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[idx]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(ctx)
	if err != nil {
		d.logger.Error("webhook: init cursor failed", "error", err)
		cur = 0
	}
	d.cursors[idx] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(idx int, value int64) {
	d.mu.Lock()
	d.cursors[idx] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityID   string          `json:"entity_id,omitempty"`
	TargetKind string          `json:"target_kind"`
	TargetID   string          `json:"target_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

type webhookBatch struct {
	WebhookID string         `json:"webhook_id"`
	Events    []webhookEvent `json:"events"`
}

func toWebhookEvent(evt domain.Event) webhookEvent {
	payload := json.RawMessage(`{}`)
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	return webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityID:   evt.EntityID,
		TargetKind: evt.TargetKind,
		TargetID:   evt.TargetID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
	}
}

// signPayload returns the hex HMAC-SHA256 of body under secret.
func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *webhookDispatcher) postBatch(ctx context.Context, hook config.WebhookConfig, batch []webhookEvent) error {
	data, err := json.Marshal(webhookBatch{WebhookID: hook.ID, Events: batch})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Opsline-Webhook", hook.ID)
	req.Header.Set("X-Opsline-Delivery", fmt.Sprintf("%d-%d", batch[0].ID, batch[len(batch)-1].ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Opsline-Signature", "sha256="+signPayload(hook.Secret, data))
	}
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
