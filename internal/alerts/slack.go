package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// SlackConfig configures the incoming-webhook notifier.
type SlackConfig struct {
	Enabled         bool   `yaml:"enabled"`
	WebhookURL      string `yaml:"webhook_url"`
	Channel         string `yaml:"channel"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	DedupeWindowMs  int    `yaml:"dedupe_window_ms"`
	MaxAttempts     int    `yaml:"max_attempts"`
	TimeoutMs       int    `yaml:"timeout_ms"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color  string       `json:"color"`
	Fields []SlackField `json:"fields"`
}

type SlackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackNotifier posts alert events to a Slack incoming webhook with
// per-event dedupe, a global per-minute rate limit and retries.
type SlackNotifier struct {
	cfg        SlackConfig
	httpClient *http.Client
	backoff    time.Duration

	mu     sync.Mutex
	sent   map[string]time.Time
	recent []time.Time
}

// NewSlackNotifier fills config defaults and creates the notifier.
func NewSlackNotifier(cfg SlackConfig) *SlackNotifier {
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 20
	}
	if cfg.DedupeWindowMs <= 0 {
		cfg.DedupeWindowMs = 60000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 10000
	}
	return &SlackNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		backoff:    time.Second,
		sent:       make(map[string]time.Time),
	}
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

// Notify implements Notifier. Duplicates and rate-limited events are
// skipped without error.
func (s *SlackNotifier) Notify(ctx context.Context, ev Event) error {
	if !s.cfg.Enabled || s.cfg.WebhookURL == "" {
		return nil
	}
	key, ok := s.admit(ev, time.Now())
	if !ok {
		return nil
	}

	payload, err := json.Marshal(s.formatMessage(ev))
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			// exponential backoff with 10% jitter
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * s.backoff
			backoff += time.Duration(rand.Float64() * float64(backoff) * 0.1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = s.post(ctx, payload); lastErr == nil {
			s.markSent(key, time.Now())
			return nil
		}
	}
	return lastErr
}

// admit applies dedupe and the rate limit. The dedupe key is returned for
// markSent; only delivered alerts suppress later duplicates.
func (s *SlackNotifier) admit(ev Event, now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s:%s:%.4f", ev.Symbol, ev.Kind, ev.Threshold)
	window := time.Duration(s.cfg.DedupeWindowMs) * time.Millisecond
	if last, ok := s.sent[key]; ok && now.Sub(last) < window {
		return key, false
	}
	for k, t := range s.sent {
		if now.Sub(t) >= window {
			delete(s.sent, k)
		}
	}

	cutoff := now.Add(-time.Minute)
	kept := s.recent[:0]
	for _, t := range s.recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.recent = kept
	if len(s.recent) >= s.cfg.RateLimitPerMin {
		observ.Warn("slack_rate_limited", map[string]any{"symbol": ev.Symbol})
		return key, false
	}

	s.recent = append(s.recent, now)
	return key, true
}

func (s *SlackNotifier) markSent(key string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[key] = now
}

func (s *SlackNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack webhook failed with status %d", resp.StatusCode)
	}
	return nil
}

func (s *SlackNotifier) formatMessage(ev Event) SlackMessage {
	emoji := "📈"
	color := "good"
	if ev.Kind == Below {
		emoji = "🚨"
		color = "danger"
	}

	return SlackMessage{
		Channel: s.cfg.Channel,
		Text:    fmt.Sprintf("%s %s", emoji, ev.Message()),
		Attachments: []SlackAttachment{{
			Color: color,
			Fields: []SlackField{
				{Title: "Symbol", Value: ev.Symbol, Short: true},
				{Title: "Threshold", Value: fmt.Sprintf("%s %.2f", ev.Kind, ev.Threshold), Short: true},
				{Title: "Price", Value: fmt.Sprintf("%.2f", ev.Price), Short: true},
				{Title: "Time", Value: ev.At.Format("15:04:05 MST"), Short: true},
			},
		}},
	}
}
