package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"soc-realtime/pkg/log"
)

const webhookURL = "https://discord.com/api/webhooks/%s/%s"

// Webhook contains webhook credentials for the Discord API.
type Webhook struct {
	ID    string
	Token string
}

// Discord sends embed messages to a Discord webhook.
type Discord struct {
	l       log.Logger
	webhook Webhook
	config  Config
	client  *http.Client
}

// New creates a new Discord client instance. Logger can be nil, in which
// case retry logging is skipped.
func New(l log.Logger, webhook Webhook) (*Discord, error) {
	if webhook.ID == "" || webhook.Token == "" {
		return nil, errors.New("webhook ID and token are required")
	}

	config := DefaultConfig()

	return &Discord{
		l:       l,
		webhook: webhook,
		config:  config,
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}, nil
}

// Close closes idle connections in the HTTP client.
func (d *Discord) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

// SendEmbed sends an embed message with options.
func (d *Discord) SendEmbed(ctx context.Context, options MessageOptions) error {
	embed := Embed{
		Title:       truncate(options.Title, MaxTitleLen),
		Description: truncate(options.Description, MaxDescriptionLen),
		Color:       colorForType(options.Type),
		Fields:      options.Fields,
	}
	if !options.Timestamp.IsZero() {
		embed.Timestamp = options.Timestamp.Format(time.RFC3339)
	}

	if err := validateEmbedLength(&embed); err != nil {
		return err
	}

	return d.sendWithRetry(ctx, &WebhookPayload{
		Embeds:   []Embed{embed},
		Username: d.config.DefaultUsername,
	})
}

func (d *Discord) sendWithRetry(ctx context.Context, payload *WebhookPayload) error {
	var lastErr error

	for attempt := 0; attempt <= d.config.RetryCount; attempt++ {
		if attempt > 0 {
			if d.l != nil {
				d.l.Infof(ctx, "pkg.discord.sendWithRetry: retrying attempt %d/%d", attempt, d.config.RetryCount)
			}
			time.Sleep(d.config.RetryDelay)
		}

		err := d.sendRequest(ctx, payload)
		if err == nil {
			return nil
		}

		lastErr = err
		if d.l != nil {
			d.l.Warnf(ctx, "pkg.discord.sendWithRetry: attempt %d failed: %v", attempt+1, err)
		}
	}

	return fmt.Errorf("failed after %d attempts, last error: %w", d.config.RetryCount+1, lastErr)
}

func (d *Discord) sendRequest(ctx context.Context, payload *WebhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf(webhookURL, d.webhook.ID, d.webhook.Token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func validateEmbedLength(embed *Embed) error {
	totalLength := len(embed.Title) + len(embed.Description)
	for _, field := range embed.Fields {
		totalLength += len(field.Name) + len(field.Value)
	}

	if totalLength > MaxEmbedLength {
		return fmt.Errorf("embed too long: %d characters (max: %d)", totalLength, MaxEmbedLength)
	}
	return nil
}

func colorForType(msgType MessageType) int {
	switch msgType {
	case MessageTypeSuccess:
		return ColorSuccess
	case MessageTypeWarning:
		return ColorWarning
	case MessageTypeError:
		return ColorError
	default:
		return ColorInfo
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
