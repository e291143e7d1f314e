package claude

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/favorites"
	"github.com/linnemanlabs/pcsboard/internal/tools"
)

// mockSender returns preconfigured responses in sequence and records requests.
type mockSender struct {
	mu        sync.Mutex
	responses []*Response
	err       error
	requests  []*Request
}

func (m *mockSender) Send(_ context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *req
	cp.Messages = append([]Message(nil), req.Messages...)
	m.requests = append(m.requests, &cp)

	if m.err != nil {
		return nil, m.err
	}
	idx := len(m.requests) - 1
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return &Response{
		Content:    []ContentBlock{{Type: "text", Text: "fallback"}},
		StopReason: StopEnd,
		Usage:      Usage{InputTokens: 10, OutputTokens: 5},
	}, nil
}

type mockTool struct {
	name   string
	output json.RawMessage
	err    error
}

func (m *mockTool) Name() string                { return m.name }
func (m *mockTool) Description() string         { return "mock tool" }
func (m *mockTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (m *mockTool) Execute(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return m.output, m.err
}

func toolUse(id, name string) *Response {
	return &Response{
		Content:    []ContentBlock{{Type: "tool_use", ID: id, Name: name, Input: json.RawMessage(`{}`)}},
		StopReason: StopToolUse,
		Usage:      Usage{InputTokens: 100, OutputTokens: 50},
	}
}

func TestReply_SingleTurn(t *testing.T) {
	t.Parallel()

	llm := &mockSender{responses: []*Response{{
		Content:    []ContentBlock{{Type: "text", Text: "Nenhum alerta crítico."}},
		StopReason: StopEnd,
	}}}
	a := NewAssistant(llm, nil, log.Nop())

	got, err := a.Reply(context.Background(), nil, "algum alerta?")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got != "Nenhum alerta crítico." {
		t.Errorf("Reply = %q", got)
	}
	if llm.requests[0].System == "" || llm.requests[0].MaxTokens != ResponseTokens {
		t.Errorf("request = %+v", llm.requests[0])
	}
}

func TestReply_ToolLoop(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	registry.Register(&mockTool{name: "pcs_overview", output: json.RawMessage(`{"kpis":{"totalVessels":3}}`)})

	llm := &mockSender{responses: []*Response{
		toolUse("call-1", "pcs_overview"),
		{Content: []ContentBlock{{Type: "text", Text: "Há 3 navios."}}, StopReason: StopEnd},
	}}
	a := NewAssistant(llm, registry, log.Nop())

	got, err := a.Reply(context.Background(), nil, "quantos navios?")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got != "Há 3 navios." {
		t.Errorf("Reply = %q", got)
	}
	if len(llm.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(llm.requests))
	}
	second := llm.requests[1].Messages
	if len(second) != 3 {
		t.Fatalf("second request messages = %d, want 3", len(second))
	}
	result := second[2].Content[0]
	if result.Type != "tool_result" || result.ToolUseID != "call-1" || result.IsError || !strings.Contains(result.Content, "totalVessels") {
		t.Errorf("tool result = %+v", result)
	}
	if len(llm.requests[0].Tools) != 1 {
		t.Errorf("tools advertised = %d, want 1", len(llm.requests[0].Tools))
	}
}

func TestReply_ToolErrors(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	registry.Register(&mockTool{name: "pcs_vessel", err: errors.New("vessel not found")})

	llm := &mockSender{responses: []*Response{
		{
			Content: []ContentBlock{
				{Type: "tool_use", ID: "a", Name: "pcs_vessel", Input: json.RawMessage(`{}`)},
				{Type: "tool_use", ID: "b", Name: "nope", Input: json.RawMessage(`{}`)},
			},
			StopReason: StopToolUse,
		},
	}}
	a := NewAssistant(llm, registry, log.Nop())

	if _, err := a.Reply(context.Background(), nil, "x"); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	results := llm.requests[1].Messages[2].Content
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	if !results[0].IsError || !strings.Contains(results[0].Content, "tool error: vessel not found") {
		t.Errorf("failing tool result = %+v", results[0])
	}
	if !results[1].IsError || results[1].Content != "unknown tool: nope" {
		t.Errorf("unknown tool result = %+v", results[1])
	}
}

func TestReply_LLMError(t *testing.T) {
	t.Parallel()

	a := NewAssistant(&mockSender{err: errors.New("overloaded")}, nil, log.Nop())
	if _, err := a.Reply(context.Background(), nil, "x"); err == nil || err.Error() != "overloaded" {
		t.Errorf("err = %v", err)
	}
}

func TestReply_ToolRoundsLimit(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	registry.Register(&mockTool{name: "loop", output: json.RawMessage(`{}`)})

	responses := make([]*Response, 0, MaxToolRounds+1)
	for range MaxToolRounds + 1 {
		responses = append(responses, toolUse("c", "loop"))
	}
	llm := &mockSender{responses: responses}
	a := NewAssistant(llm, registry, log.Nop())

	_, err := a.Reply(context.Background(), nil, "x")
	if !errors.Is(err, errNoAnswer) {
		t.Errorf("err = %v, want errNoAnswer", err)
	}
	if len(llm.requests) != MaxToolRounds {
		t.Errorf("requests = %d, want %d", len(llm.requests), MaxToolRounds)
	}
}

func TestReply_TokenLimitKeepsLastText(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	registry.Register(&mockTool{name: "loop", output: json.RawMessage(`{}`)})

	llm := &mockSender{responses: []*Response{{
		Content: []ContentBlock{
			{Type: "text", Text: "Resposta parcial."},
			{Type: "tool_use", ID: "c", Name: "loop", Input: json.RawMessage(`{}`)},
		},
		StopReason: StopToolUse,
		Usage:      Usage{InputTokens: MaxTokens, OutputTokens: 1},
	}}}
	a := NewAssistant(llm, registry, log.Nop())

	got, err := a.Reply(context.Background(), nil, "x")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got != "Resposta parcial." {
		t.Errorf("Reply = %q", got)
	}
}

func TestConversation(t *testing.T) {
	t.Parallel()

	history := []favorites.Message{
		{ID: favorites.WelcomeID, Text: "Olá!"},
		{ID: "1", Text: "status MSC-ANNA?", IsUser: true},
		{ID: "2", Text: "Liberado."},
		{ID: "3", Text: "e o CMA-LYON?", IsUser: true},
	}

	got := conversation(history, "obrigado")

	var roles []string
	for _, m := range got {
		roles = append(roles, m.Role)
	}
	if strings.Join(roles, ",") != "user,assistant,user" {
		t.Fatalf("roles = %v", roles)
	}
	if got[2].Content[0].Text != "e o CMA-LYON?\n\nobrigado" {
		t.Errorf("merged text = %q", got[2].Content[0].Text)
	}
}

func TestConversation_BoundsHistory(t *testing.T) {
	t.Parallel()

	var history []favorites.Message
	for i := range 50 {
		history = append(history, favorites.Message{ID: string(rune('a' + i%26)), Text: "m", IsUser: i%2 == 0})
	}
	got := conversation(history, "fim")
	if len(got) > maxHistory+1 {
		t.Errorf("messages = %d, want at most %d", len(got), maxHistory+1)
	}
	if got[0].Role != "user" {
		t.Errorf("first role = %q, want user", got[0].Role)
	}
}

func TestReply_CreatesSpans(t *testing.T) {
	// Not parallel: swaps the global OTel tracer provider.

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	registry := tools.NewRegistry()
	registry.Register(&mockTool{name: "pcs_overview", output: json.RawMessage(`{"ok":true}`)})
	registry.Register(&mockTool{name: "pcs_vessel", err: errors.New("vessel not found")})

	llm := &mockSender{responses: []*Response{
		{
			Content: []ContentBlock{
				{Type: "tool_use", ID: "c-1", Name: "pcs_overview", Input: json.RawMessage(`{}`)},
				{Type: "tool_use", ID: "c-2", Name: "pcs_vessel", Input: json.RawMessage(`{"vessel_id":"X"}`)},
			},
			StopReason: StopToolUse,
			Usage:      Usage{InputTokens: 100, OutputTokens: 50},
		},
		{
			Content:    []ContentBlock{{Type: "text", Text: "pronto"}},
			StopReason: StopEnd,
			Usage:      Usage{InputTokens: 200, OutputTokens: 80},
		},
	}}

	if _, err := NewAssistant(llm, registry, log.Nop()).Reply(context.Background(), nil, "status?"); err != nil {
		t.Fatalf("Reply: %v", err)
	}

	attrsOf := func(s tracetest.SpanStub) map[string]any {
		out := make(map[string]any)
		for _, a := range s.Attributes {
			out[string(a.Key)] = a.Value.AsInterface()
		}
		return out
	}

	var calls, toolSpans int
	for _, s := range exporter.GetSpans() {
		attrs := attrsOf(s)
		switch s.Name {
		case "llm.call":
			if v := attrs["pcsboard.chat.seq"]; v != int64(calls) {
				t.Errorf("llm.call seq = %v, want %d", v, calls)
			}
			if _, ok := attrs["gen_ai.usage.input_tokens"]; !ok {
				t.Error("llm.call span missing gen_ai.usage.input_tokens")
			}
			calls++
		case "tool.execute":
			toolSpans++
			wantErr := attrs["gen_ai.tool.name"] == "pcs_vessel"
			if v := attrs["pcsboard.tool.is_error"]; v != wantErr {
				t.Errorf("%v is_error = %v, want %v", attrs["gen_ai.tool.name"], v, wantErr)
			}
			var sawResult bool
			for _, ev := range s.Events {
				if ev.Name == "tool.result" {
					sawResult = true
				}
			}
			if !sawResult {
				t.Errorf("%v span missing tool.result event", attrs["gen_ai.tool.name"])
			}
		}
	}
	if calls != 2 {
		t.Errorf("llm.call spans = %d, want 2", calls)
	}
	if toolSpans != 2 {
		t.Errorf("tool.execute spans = %d, want 2", toolSpans)
	}
}
