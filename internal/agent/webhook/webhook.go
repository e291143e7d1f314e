// Package webhook is an assistant provider that forwards each question to a
// remote agent webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/pcsboard/internal/favorites"
)

// FallbackReply is used when the webhook answers without any text.
const FallbackReply = "Desculpe, não consegui processar sua pergunta."

const maxReplyBytes = 1 << 20

// Client posts questions to the agent webhook. The remote agent keeps its
// own context, so the local history is not forwarded.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a client for endpoint. A nil hc selects a traced client with
// a two minute timeout.
func New(endpoint string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{
			Timeout:   2 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{endpoint: endpoint, httpClient: hc}
}

// Reply sends text and returns the agent's answer: the "response" field,
// else "message", else FallbackReply.
func (c *Client) Reply(ctx context.Context, _ []favorites.Message, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // endpoint comes from trusted config
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("agent webhook error %d: %s", resp.StatusCode, string(payload))
	}

	var out struct {
		Response any `json:"response"`
		Message  any `json:"message"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	for _, v := range []any{out.Response, out.Message} {
		if s := replyText(v); s != "" {
			return s, nil
		}
	}
	return FallbackReply, nil
}

// replyText renders a reply field. Strings are used as-is and other non-empty
// values as JSON.
func replyText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
