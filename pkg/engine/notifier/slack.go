// Package notifier delivers daemon events to a Slack-compatible webhook.
package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// SlackClient posts block-formatted messages to an incoming webhook.
type SlackClient struct {
	WebhookURL string
	Channel    string // optional: override default channel
}

// NewSlackClient initializes the webhook integration.
func NewSlackClient(webhookURL, channel string) *SlackClient {
	return &SlackClient{WebhookURL: webhookURL, Channel: channel}
}

// SendPressureAlert announces a pressure level change on a mount.
func (s *SlackClient) SendPressureAlert(mount, from, to string, freePct float64) error {
	icon := "🟡"
	switch to {
	case "red", "critical":
		icon = "🔴"
	case "green":
		icon = "🟢"
	}
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Disk Pressure: %s → %s", icon, from, to),
				},
			},
			{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Mount:* %s\n*Free:* %.1f%%", mount, freePct),
				},
			},
		},
	}
	return s.send(payload)
}

// SendCleanupReport summarizes a completed cleanup pass.
func (s *SlackClient) SendCleanupReport(mount string, itemsDeleted int, bytesFreed uint64) error {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type": "plain_text",
					"text": "🧹 Cleanup Completed",
				},
			},
			{
				"type": "section",
				"fields": []map[string]interface{}{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Mount:*\n%s", mount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Items Deleted:*\n%d", itemsDeleted)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Space Reclaimed:*\n%s", humanize.IBytes(bytesFreed))},
				},
			},
		},
	}
	return s.send(payload)
}

// SendBallastAlert announces emergency slack being handed back.
func (s *SlackClient) SendBallastAlert(mount string, filesReleased int, bytesFreed uint64) error {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type": "plain_text",
					"text": "⚠️ Ballast Released",
				},
			},
			{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": fmt.Sprintf("Released %d ballast file(s) on *%s*, freeing %s. Cleanup is underway; replenish follows once pressure clears.",
						filesReleased, mount, humanize.IBytes(bytesFreed)),
				},
			},
		},
	}
	return s.send(payload)
}

// SendErrorAlert surfaces a daemon error with its stable code.
func (s *SlackClient) SendErrorAlert(code, message string) error {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": fmt.Sprintf("🔥 *%s* %s", code, message),
				},
			},
		},
	}
	return s.send(payload)
}

func (s *SlackClient) send(payload map[string]interface{}) error {
	if s.WebhookURL == "" {
		return nil
	}
	if s.Channel != "" {
		payload["channel"] = s.Channel
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, s.WebhookURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 status from webhook: %d", resp.StatusCode)
	}
	return nil
}
