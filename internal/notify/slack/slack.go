// Package slack posts the PCS executive report to Slack via an incoming
// webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/pcs"
)

const (
	maxSummaryLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends executive reports to a Slack webhook.
type Notifier struct {
	webhookURL string
	dashboard  string
	client     *http.Client
	logger     log.Logger
}

// New creates a Slack notifier. If webhookURL is empty, NotifyReport is a
// no-op. dashboardURL, when set, is linked from the message footer.
func New(webhookURL, dashboardURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		dashboard:  dashboardURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// NotifyReport posts r together with the dashboard KPIs.
func (n *Notifier) NotifyReport(ctx context.Context, r *pcs.Report, k pcs.DashboardKPIs) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(n.buildMessage(r, k))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	n.logger.Info(ctx, "slack report posted", "critical_alerts", k.CriticalAlerts, "total_issues", r.TotalIssues)
	return nil
}

func (n *Notifier) buildMessage(r *pcs.Report, k pcs.DashboardKPIs) map[string]any {
	return map[string]any{
		"text": fmt.Sprintf("Relatório executivo PCS: %d alertas críticos", k.CriticalAlerts),
		"blocks": []map[string]any{
			headerBlock(k),
			{"type": "divider"},
			kpiBlock(k),
			issuesBlock(r),
			{"type": "divider"},
			summaryBlock(r),
			{"type": "divider"},
			n.contextBlock(r),
		},
	}
}

func headerBlock(k pcs.DashboardKPIs) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Relatório executivo PCS", levelEmoji(k)),
		},
	}
}

func kpiBlock(k pcs.DashboardKPIs) map[string]any {
	return fields(
		fmt.Sprintf("*Navios:* %d", k.TotalVessels),
		fmt.Sprintf("*Operação normal:* %d", k.NormalVessels),
		fmt.Sprintf("*Alertas:* %d", k.TotalAlerts),
		fmt.Sprintf("*Alertas críticos:* %d", k.CriticalAlerts),
		fmt.Sprintf("*Fontes:* %d", k.Sources),
	)
}

func issuesBlock(r *pcs.Report) map[string]any {
	return fields(
		fmt.Sprintf("*Bloqueios documentais:* %d", r.DocumentalBlocks),
		fmt.Sprintf("*Problemas de acesso:* %d", r.AccessIssues),
		fmt.Sprintf("*Discrepâncias de horário:* %d", r.TimeDiscrepancies),
		fmt.Sprintf("*Total de problemas:* %d", r.TotalIssues),
	)
}

func fields(texts ...string) map[string]any {
	out := make([]map[string]any, 0, len(texts))
	for _, t := range texts {
		out = append(out, map[string]any{"type": "mrkdwn", "text": t})
	}
	return map[string]any{"type": "section", "fields": out}
}

func summaryBlock(r *pcs.Report) map[string]any {
	var b strings.Builder
	b.WriteString("*Resumo*\n\n")
	b.WriteString(r.Summary)
	if len(r.Recommendations) > 0 {
		b.WriteString("\n\n*Recomendações*")
		for _, rec := range r.Recommendations {
			b.WriteString("\n• ")
			b.WriteString(rec)
		}
	}
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": truncate(b.String(), maxSummaryLen),
		},
	}
}

func (n *Notifier) contextBlock(r *pcs.Report) map[string]any {
	text := fmt.Sprintf("pcsboard • %s", r.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	if n.dashboard != "" {
		text += fmt.Sprintf(" • <%s|abrir painel>", n.dashboard)
	}
	return map[string]any{
		"type":     "context",
		"elements": []map[string]any{{"type": "mrkdwn", "text": text}},
	}
}

func levelEmoji(k pcs.DashboardKPIs) string {
	switch {
	case k.CriticalAlerts > 0:
		return "\U0001f534" // red circle
	case k.TotalAlerts > 0:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
