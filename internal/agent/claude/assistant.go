package claude

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/favorites"
	"github.com/linnemanlabs/pcsboard/internal/tools"
)

const (
	MaxToolRounds  = 8
	MaxTokens      = 50000
	ResponseTokens = 2048

	// maxHistory bounds how many stored chat messages are replayed.
	maxHistory = 20
)

var tracer = otel.Tracer("github.com/linnemanlabs/pcsboard/internal/agent/claude")

var errNoAnswer = errors.New("assistant returned no answer")

const systemPrompt = `Você é o Agente Marítimo, assistente do painel do Port Community System (PCS).
Responda em português, de forma curta e operacional.

Use as ferramentas para consultar a situação atual do porto antes de responder:
pcs_overview para a visão geral, pcs_category para listar navios de uma categoria
e pcs_vessel para os detalhes de um navio. Não invente navios, status ou alertas
que não apareçam nas ferramentas.`

// Sender is a model backend. *Client implements it.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Assistant runs a bounded tool loop per question.
type Assistant struct {
	llm      Sender
	registry *tools.Registry
	logger   log.Logger
}

// NewAssistant creates an assistant that may call the tools in registry.
func NewAssistant(llm Sender, registry *tools.Registry, logger log.Logger) *Assistant {
	if logger == nil {
		logger = log.Nop()
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Assistant{llm: llm, registry: registry, logger: logger}
}

// Reply answers text given the earlier chat history.
func (a *Assistant) Reply(ctx context.Context, history []favorites.Message, text string) (string, error) {
	messages := conversation(history, text)

	var totalTokens, totalToolCalls, seq int
	var lastText string

	for {
		if totalToolCalls >= MaxToolRounds {
			a.logger.Warn(ctx, "assistant hit tool call limit", "limit", MaxToolRounds)
			return finalText(lastText)
		}
		if totalTokens >= MaxTokens {
			a.logger.Warn(ctx, "assistant hit token limit", "limit", MaxTokens)
			return finalText(lastText)
		}

		resp, err := a.call(ctx, messages, seq)
		if err != nil {
			return "", err
		}
		seq++
		totalTokens += resp.Usage.InputTokens + resp.Usage.OutputTokens

		if t := joinText(resp.Content); t != "" {
			lastText = t
		}

		if resp.StopReason != StopToolUse {
			a.logger.Info(ctx, "assistant answered",
				"stop_reason", resp.StopReason,
				"total_tokens", totalTokens,
				"tool_calls", totalToolCalls,
			)
			return finalText(lastText)
		}

		messages = append(messages, Message{Role: "assistant", Content: resp.Content})

		var results []ContentBlock
		for _, block := range resp.Content {
			if block.Type != "tool_use" {
				continue
			}
			totalToolCalls++
			results = append(results, a.runTool(ctx, block, totalToolCalls))
		}
		messages = append(messages, Message{Role: "user", Content: results})
	}
}

// call sends one request to the model inside an llm.call span.
func (a *Assistant) call(ctx context.Context, messages []Message, seq int) (*Response, error) {
	ctx, span := tracer.Start(ctx, "llm.call", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "llm.call"),
		attribute.Int("pcsboard.chat.seq", seq),
		attribute.Int("pcsboard.chat.messages", len(messages)),
	))
	defer span.End()

	resp, err := a.llm.Send(ctx, &Request{
		MaxTokens: ResponseTokens,
		System:    systemPrompt,
		Messages:  messages,
		Tools:     a.registry.ToToolDefs(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Error(ctx, err, "llm call failed", "seq", seq)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("gen_ai.response.stop_reason", string(resp.StopReason)),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)
	return resp, nil
}

func (a *Assistant) runTool(ctx context.Context, block ContentBlock, n int) ContentBlock {
	ctx, span := tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		attribute.String("gen_ai.operation.name", "tool.execute"),
		attribute.String("gen_ai.tool.name", block.Name),
		attribute.String("gen_ai.tool.call.id", block.ID),
		attribute.String("pcsboard.tool.input", string(block.Input)),
	))
	defer span.End()

	a.logger.Info(ctx, "executing tool", "tool", block.Name, "call_number", n)

	result := func(content string, isErr bool) ContentBlock {
		span.SetAttributes(attribute.Bool("pcsboard.tool.is_error", isErr))
		span.AddEvent("tool.result", trace.WithAttributes(attribute.String("tool.result.body", content)))
		return ContentBlock{Type: "tool_result", ToolUseID: block.ID, Content: content, IsError: isErr}
	}

	output, err := a.registry.Call(ctx, block.Name, block.Input)
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		span.SetStatus(codes.Error, "unknown tool")
		a.logger.Warn(ctx, "model requested unknown tool", "tool", block.Name)
		return result(fmt.Sprintf("unknown tool: %s", block.Name), true)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Error(ctx, err, "tool execution failed", "tool", block.Name)
		return result(fmt.Sprintf("tool error: %v", err), true)
	}
	return result(string(output), false)
}

// conversation turns the stored chat into alternating model turns that start
// with the user. The welcome message is dropped and consecutive messages from
// the same side are merged.
func conversation(history []favorites.Message, text string) []Message {
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	var out []Message
	add := func(role, s string) {
		if n := len(out); n > 0 && out[n-1].Role == role {
			prev := &out[n-1].Content[0]
			prev.Text += "\n\n" + s
			return
		}
		out = append(out, Message{Role: role, Content: []ContentBlock{{Type: "text", Text: s}}})
	}
	for _, m := range history {
		if m.ID == favorites.WelcomeID || strings.TrimSpace(m.Text) == "" {
			continue
		}
		role := "assistant"
		if m.IsUser {
			role = "user"
		}
		if role == "assistant" && len(out) == 0 {
			continue
		}
		add(role, m.Text)
	}
	add("user", text)
	return out
}

func joinText(blocks []ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

func finalText(s string) (string, error) {
	if s == "" {
		return "", errNoAnswer
	}
	return s, nil
}
