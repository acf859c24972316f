package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Discord caps embed descriptions at 4096 characters.
const discordMaxDescription = 4096

// DiscordSender delivers notifications via a Discord webhook as a single
// embed.
type DiscordSender struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL. It uses a
// default HTTP client with a 10-second timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		username:   "polybot",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Send posts an embed to the Discord webhook. The embed color follows the
// title: green for buys and wins, red for sells, losses and halts.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	// Discord embeds do not render Telegram-style single asterisks.
	desc := strings.ReplaceAll(message, "*", "**")
	if r := []rune(desc); len(r) > discordMaxDescription {
		desc = string(r[:discordMaxDescription-3]) + "..."
	}

	payload := discordPayload{
		Username: d.username,
		Embeds: []discordEmbed{{
			Title:       title,
			Description: desc,
			Color:       embedColor(title),
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

func embedColor(title string) int {
	t := strings.ToUpper(title)
	switch {
	case strings.Contains(t, "HALT"), strings.Contains(t, "LOSS"), strings.Contains(t, "SELL"):
		return 0xE74C3C
	case strings.Contains(t, "WIN"), strings.Contains(t, "BUY"):
		return 0x2ECC71
	default:
		return 0x95A5A6
	}
}
