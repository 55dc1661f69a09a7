// Package nlselect implements the NaturalLanguageSelectStep plugin (§3.2,
// §4.5[FULL]): it sends the anchor's outer HTML plus a natural-language
// target description to an OpenAI-compatible chat completion endpoint and
// resolves the answer into a concrete CSS/XPath locator, then extracts
// fields from it through the same 0/1/>1 rules as ExtractStep.
// Grounded on llm/openai.go's Client/ExtractParams/classifyLLMError shape,
// repointed from schema-guided JSON extraction to locator resolution.
package nlselect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/starlitlog/dr-web-engine/fields"
	"github.com/starlitlog/dr-web-engine/query"
)

// Step asks the model to find an element described in natural language and
// extract fields from it.
type Step struct {
	XPath    query.Expression           `json:"xpath,omitempty"` // optional scope anchor
	Describe string                     `json:"describe"`        // natural-language target description
	Name     string                     `json:"name,omitempty"`
	Fields   map[string]query.FieldSpec `json:"fields,omitempty"`
}

func (Step) StepKind() string { return "nl_select" }

// Config carries the BYOK credentials and model settings the plugin needs;
// constructed once from config.LLMConfig and passed to New.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Processor runs Step against the configured LLM endpoint.
type Processor struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Processor {
	return &Processor{cfg: cfg, client: &http.Client{}}
}

func (p *Processor) Name() string    { return "plugin.nl_select" }
func (p *Processor) Kinds() []string { return []string{"nl_select"} }
func (p *Processor) Priority() int   { return 100 }
func (p *Processor) CanHandle(s query.Step) bool {
	_, ok := s.(Step)
	return ok
}

func (p *Processor) Execute(ctx context.Context, ec query.EvalContext, controller query.PageController, step query.Step) ([]any, error) {
	ns, ok := step.(Step)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Path: ec.Path, Message: "nl_select: wrong step type"}
	}
	if p.cfg.APIKey == "" {
		ec.ReportSoftFail(query.ErrScriptError, "nl_select: no LLM credentials configured")
		return []any{}, nil
	}

	var anchor query.Node
	if !ns.XPath.Empty() {
		val, err := controller.Query(ctx, ns.XPath, nil)
		if err != nil {
			return nil, &query.EvalError{Code: query.ErrExpressionSyntaxError, Path: ec.Path, Message: "nl_select: scope xpath failed", Err: err}
		}
		if val.Kind != query.ValueNodes || len(val.Nodes) == 0 {
			return []any{}, nil
		}
		anchor = val.Nodes[0]
	}

	var scopeHTML string
	if anchor != nil {
		scopeHTML = anchor.OuterHTML()
	} else {
		rootVal, err := controller.Query(ctx, "/*", nil)
		if err == nil && rootVal.Kind == query.ValueNodes && len(rootVal.Nodes) > 0 {
			scopeHTML = rootVal.Nodes[0].OuterHTML()
		}
	}

	locator, err := p.resolveLocator(ctx, scopeHTML, ns.Describe)
	if err != nil {
		ec.ReportSoftFail(query.ErrScriptError, "nl_select: "+err.Error())
		return []any{}, nil
	}

	val, err := controller.Query(ctx, locator, anchor)
	if err != nil {
		ec.ReportSoftFail(query.ErrExpressionSyntaxError, "nl_select: resolved locator failed: "+err.Error())
		return []any{}, nil
	}
	if val.Kind != query.ValueNodes || len(val.Nodes) == 0 {
		return []any{}, nil
	}

	var records []any
	for i, node := range val.Nodes {
		record, diags := fields.Extract(ctx, controller, node, ns.Fields)
		nodeEC := ec.AtStep(i)
		for _, d := range diags {
			nodeEC.ReportSoftFail(d.Code, d.Message)
		}
		records = append(records, record)
	}
	return records, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// resolveLocator asks the model for a CSS selector matching describe within
// scopeHTML, following llm/openai.go's raw-net/http chat-completion shape.
func (p *Processor) resolveLocator(ctx context.Context, scopeHTML, describe string) (query.Expression, error) {
	systemPrompt := `You locate elements in HTML. Given a fragment of HTML and a ` +
		`natural-language description of a target element, respond with ONLY a ` +
		`single valid CSS selector that matches it. No explanation, no markdown fences.`

	reqBody := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "HTML:\n" + scopeHTML + "\n\nTarget: " + describe},
		},
		Temperature: 0,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("LLM request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading LLM response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatErrorResponse
		msg := "LLM API error"
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return "", fmt.Errorf("LLM API returned %d: %s", resp.StatusCode, msg)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parsing LLM response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	selector := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	selector = strings.Trim(selector, "`")
	if selector == "" {
		return "", fmt.Errorf("LLM returned an empty selector")
	}
	return query.Expression(selector), nil
}
