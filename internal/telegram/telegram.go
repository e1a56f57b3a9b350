package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"propure/server/config"
	"propure/server/internal/models"
)

const defaultBaseURL = "https://api.telegram.org"

// maxListedSuburbs caps how many failed suburbs a run summary names.
const maxListedSuburbs = 10

// Service posts run summaries to a Telegram chat. Without a bot token and
// chat ID every send is a no-op.
type Service struct {
	logger   *logrus.Logger
	client   *http.Client
	baseURL  string
	botToken string
	chatID   string
}

type Option func(*Service)

func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) { s.client = hc }
}

func NewService(botToken, chatID string, logger *logrus.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Service{
		logger:   logger,
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  defaultBaseURL,
		botToken: botToken,
		chatID:   chatID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func NewServiceFromConfig(cfg *config.Config, logger *logrus.Logger) *Service {
	return NewService(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
}

func (s *Service) Enabled() bool {
	return s.botToken != "" && s.chatID != ""
}

// SendMessage sends an HTML formatted message to the configured chat.
func (s *Service) SendMessage(ctx context.Context, message string) error {
	if !s.Enabled() {
		return nil
	}

	payload := map[string]interface{}{
		"chat_id":    s.chatID,
		"text":       message,
		"parse_mode": "HTML",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found")
		default:
			return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}
	return nil
}

// NotifySuburbRun reports the outcome of a suburb metrics run.
func (s *Service) NotifySuburbRun(ctx context.Context, result *models.SuburbRunResult) error {
	if result == nil || !s.Enabled() {
		return nil
	}
	return s.SendMessage(ctx, FormatSuburbRun(result))
}

// NotifySyncRun reports the outcome of a listing sync run.
func (s *Service) NotifySyncRun(ctx context.Context, result *models.SyncRunResult) error {
	if result == nil || !s.Enabled() {
		return nil
	}
	return s.SendMessage(ctx, FormatSyncRun(result))
}

func FormatSuburbRun(result *models.SuburbRunResult) string {
	title := "<b>✅ Suburb metrics updated</b>"
	if !result.Success {
		title = "<b>⚠️ Suburb metrics run finished with failures</b>"
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "📈 Updated: %d\n", result.SuccessCount)
	fmt.Fprintf(&b, "❌ Failed: %d\n", result.FailureCount)
	if !result.FinishedAt.IsZero() && !result.StartedAt.IsZero() {
		fmt.Fprintf(&b, "⏱️ Took: %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Second))
	}
	if result.Error != "" {
		fmt.Fprintf(&b, "\n🛑 %s\n", html.EscapeString(result.Error))
	}

	if len(result.Errors) > 0 {
		b.WriteString("\n")
		for i, e := range result.Errors {
			if i == maxListedSuburbs {
				fmt.Fprintf(&b, "… and %d more\n", len(result.Errors)-maxListedSuburbs)
				break
			}
			fmt.Fprintf(&b, "• %s: %s\n", html.EscapeString(e.Suburb), html.EscapeString(e.Error))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatSyncRun(result *models.SyncRunResult) string {
	title := "<b>✅ Listing sync complete</b>"
	if result.Pending > 0 {
		title = "<b>⚠️ Listing sync incomplete</b>"
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "📍 Locations: %d\n", result.TotalLocations)
	fmt.Fprintf(&b, "✔️ Completed: %d\n", result.Completed)
	fmt.Fprintf(&b, "⏳ Pending: %d\n", result.Pending)

	var listings int
	keys := make([]string, 0, len(result.Results))
	for key, types := range result.Results {
		keys = append(keys, key)
		for _, t := range types {
			listings += t.ListingsCount
		}
	}
	fmt.Fprintf(&b, "🏠 Listings: %d\n", listings)

	sort.Strings(keys)
	var failures []string
	for _, key := range keys {
		for _, t := range result.Results[key] {
			if !t.Success {
				suburb, _, _ := strings.Cut(key, "|")
				failures = append(failures, fmt.Sprintf("• %s %s: %s", html.EscapeString(suburb), t.ListingType, html.EscapeString(t.Error)))
			}
		}
	}
	if len(failures) > 0 {
		b.WriteString("\n")
		for i, f := range failures {
			if i == maxListedSuburbs {
				fmt.Fprintf(&b, "… and %d more\n", len(failures)-maxListedSuburbs)
				break
			}
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
