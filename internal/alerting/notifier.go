package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// GapLine is one asset's gap in the run summary.
type GapLine struct {
	AssetID string
	Name    string
	GapPct  float64
}

// Notification summarizes a completed valuation run for the reviewer.
type Notification struct {
	RunDate         time.Time
	StrategyName    string
	StrategyVersion string
	RunID           string
	Inserted        int
	TopUndervalued  []GapLine
	AdditionalMsg   string
}

// Notifier delivers run summaries.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the rendered summary via the sendMessage API.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Time("run_date", note.RunDate).
		Str("strategy", note.StrategyName+":"+note.StrategyVersion).
		Msg("run summary sent (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Valuation Run]\n")
	builder.WriteString(fmt.Sprintf("Date: %s\n", note.RunDate.UTC().Format("2006-01-02")))
	builder.WriteString(fmt.Sprintf("Strategy: %s:%s\n", note.StrategyName, note.StrategyVersion))
	builder.WriteString(fmt.Sprintf("Valuations: %d\n", note.Inserted))
	if note.RunID != "" {
		builder.WriteString(fmt.Sprintf("Run: %s\n", note.RunID))
	}
	if len(note.TopUndervalued) > 0 {
		builder.WriteString("Top undervalued:\n")
		for _, line := range note.TopUndervalued {
			label := line.AssetID
			if line.Name != "" {
				label = fmt.Sprintf("%s (%s)", line.AssetID, line.Name)
			}
			builder.WriteString(fmt.Sprintf("  %s gap %.1f%%\n", label, line.GapPct*100))
		}
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
