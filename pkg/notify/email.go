// Package notify delivers digest emails through an HTTP email API.
// Delivery is fire-and-forget from the pipeline's perspective: failures
// are reported to the caller for logging but never roll anything back.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/neuraletter/neuraletter/internal/store"
)

// Notifier delivers a digest of freshly created updates.
type Notifier interface {
	SendDigest(ctx context.Context, recipient, topicTitle string, updates []store.Update) error
}

// EmailNotifier sends digests via the MailDoor HTTP API.
type EmailNotifier struct {
	client   *http.Client
	apiURL   string
	apiKey   string
	fromName string
}

// NewEmailNotifier creates a new email notifier.
func NewEmailNotifier(apiURL, apiKey, fromName string) *EmailNotifier {
	return &EmailNotifier{
		client:   &http.Client{Timeout: 30 * time.Second},
		apiURL:   apiURL,
		apiKey:   apiKey,
		fromName: fromName,
	}
}

// SendDigest emails the list of updates for a topic. With no updates it
// sends a plain-text notice instead of an empty digest.
func (n *EmailNotifier) SendDigest(ctx context.Context, recipient, topicTitle string, updates []store.Update) error {
	if topicTitle == "" {
		topicTitle = "your topic"
	}

	if len(updates) == 0 {
		body := fmt.Sprintf("There are currently no new updates for %q.", topicTitle)
		return n.send(ctx, recipient, "No new updates for "+topicTitle, body, "text")
	}

	return n.send(ctx, recipient, "New updates for "+topicTitle, digestHTML(topicTitle, updates), "html")
}

func (n *EmailNotifier) send(ctx context.Context, to, subject, body, contentType string) error {
	payload := map[string]string{
		"to":          to,
		"subject":     subject,
		"body":        body,
		"fromName":    n.fromName,
		"contentType": contentType,
	}

	encoded, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email api status %d", resp.StatusCode)
	}
	return nil
}

func digestHTML(topicTitle string, updates []store.Update) string {
	var items strings.Builder
	for _, u := range updates {
		title := "Update"
		if u.Title != nil && *u.Title != "" {
			title = *u.Title
		}
		summary := "No description available."
		if u.Summary != nil && *u.Summary != "" {
			summary = *u.Summary
		}

		link := ""
		if u.SourceURL != nil && *u.SourceURL != "" {
			link = fmt.Sprintf(`<a href="%s" style="color:#2563eb;text-decoration:none;font-size:13px;">View source</a>`,
				html.EscapeString(*u.SourceURL))
		}

		fmt.Fprintf(&items,
			`<div style="width:100%%;box-sizing:border-box;padding:12px 14px;border-radius:10px;border:1px solid #e5e7eb;background-color:#f9fafb;margin-bottom:12px;">`+
				`<div style="font-size:14px;font-weight:600;color:#111827;margin-bottom:4px;">%s</div>`+
				`<div style="font-size:13px;color:#4b5563;line-height:1.5;margin-bottom:6px;">%s</div>%s</div>`,
			html.EscapeString(title), html.EscapeString(summary), link)
	}

	return fmt.Sprintf(`<html>
  <body style="margin:0;padding:24px;background-color:#f4f4f5;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',sans-serif;">
    <div style="max-width:640px;margin:0 auto;background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px;">
      <h1 style="font-size:20px;margin:0 0 8px 0;color:#111827;font-weight:600;">Your updates on %s</h1>
      <p style="margin:0 0 18px 0;color:#4b5563;font-size:14px;">A concise snapshot of what changed around this topic.</p>
      <div>%s</div>
      <p style="margin-top:22px;font-size:12px;color:#9ca3af;">You're receiving this email because you asked Neuraletter to follow this topic.</p>
    </div>
  </body>
</html>`, html.EscapeString(topicTitle), items.String())
}
