// Package notify reports finished runs to a chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/familyevents/shipit/internal/log"
	"github.com/familyevents/shipit/internal/pipeline"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	timeout        = 10 * time.Second
)

// Telegram implements [pipeline.Notifier] with the Telegram Bot API.
type Telegram struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

// NewTelegram returns a notifier posting to chatID as the bot identified
// by token. An empty baseURL means DefaultBaseURL.
func NewTelegram(token, chatID, baseURL string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("bot token is required")
	}
	if chatID == "" {
		return nil, errors.New("chat ID is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

var _ pipeline.Notifier = &Telegram{}

// Notify sends a one-message summary of r.
func (t *Telegram) Notify(ctx context.Context, r pipeline.Run) error {
	logger := logr.FromContextOrDiscard(ctx)

	payload := map[string]interface{}{
		"chat_id":                  t.chatID,
		"text":                     Message(r),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.V(log.DBG).Info("sending run notification", "chat", t.chatID)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		// the request URL embeds the token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK || !result.OK {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, result.Description)
	}
	return nil
}

// Message renders the notification text for r.
func Message(r pipeline.Run) string {
	var b strings.Builder
	if r.Succeeded() {
		fmt.Fprintf(&b, "✅ <b>%s</b> deployed\n", html.EscapeString(r.Target))
	} else {
		fmt.Fprintf(&b, "❌ <b>%s</b> failed at %s\n", html.EscapeString(r.Target), html.EscapeString(string(r.FailedStep)))
	}
	fmt.Fprintf(&b, "image: <code>%s</code>\n", html.EscapeString(r.Image))
	if r.Event.Commit != "" {
		fmt.Fprintf(&b, "commit: <code>%s</code>\n", html.EscapeString(shortCommit(r.Event.Commit)))
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", html.EscapeString(r.Error))
	}
	fmt.Fprintf(&b, "run: %s", html.EscapeString(r.ID))
	return b.String()
}

func shortCommit(c string) string {
	if len(c) > 12 {
		return c[:12]
	}
	return c
}
