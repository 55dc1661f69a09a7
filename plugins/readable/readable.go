// Package readable implements the ReadableContentStep plugin (§3.2[FULL]):
// a two-strategy race between go-readability's article extraction and a
// density-scoring pruning fallback, formatted as text, html, or markdown.
// Grounded on cleaner/pipeline.go's Clean/autoExtract race and
// cleaner/readability.go/cleaner/pruning.go's individual strategies.
package readable

import (
	"context"
	nurl "net/url"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	readability "github.com/go-shiori/go-readability"

	"github.com/starlitlog/dr-web-engine/query"
)

// minContentLength mirrors cleaner/readability.go's fallback threshold:
// below this many characters, readability's output is treated as a miss.
const minContentLength = 50

// Step selects an anchor and asks for its main readable content.
type Step struct {
	XPath  query.Expression `json:"xpath,omitempty"`
	Name   string           `json:"name,omitempty"`
	Format string           `json:"format,omitempty"` // "text" (default), "markdown", "html"
}

func (Step) StepKind() string { return "readable_content" }

// Processor runs Step's anchor through the readability/pruning race.
type Processor struct {
	mdConverter *converter.Converter
}

func New() *Processor {
	return &Processor{mdConverter: newMarkdownConverter()}
}

func (p *Processor) Name() string    { return "plugin.readable_content" }
func (p *Processor) Kinds() []string { return []string{"readable_content"} }
func (p *Processor) Priority() int   { return 100 }
func (p *Processor) CanHandle(s query.Step) bool {
	_, ok := s.(Step)
	return ok
}

func (p *Processor) Execute(ctx context.Context, ec query.EvalContext, controller query.PageController, step query.Step) ([]any, error) {
	rc, ok := step.(Step)
	if !ok {
		return nil, &query.EvalError{Code: query.ErrSchemaError, Path: ec.Path, Message: "readable_content: wrong step type"}
	}

	var anchor query.Node
	if !rc.XPath.Empty() {
		val, err := controller.Query(ctx, rc.XPath, nil)
		if err != nil {
			return nil, &query.EvalError{Code: query.ErrExpressionSyntaxError, Path: ec.Path, Message: "readable_content: anchor xpath failed", Err: err}
		}
		if val.Kind != query.ValueNodes || len(val.Nodes) == 0 {
			return []any{}, nil
		}
		anchor = val.Nodes[0]
	}

	var outerHTML string
	if anchor != nil {
		outerHTML = anchor.OuterHTML()
	} else {
		rootVal, err := controller.Query(ctx, "/*", nil)
		if err != nil {
			return nil, &query.EvalError{Code: query.ErrExpressionSyntaxError, Path: ec.Path, Message: "readable_content: could not read document root", Err: err}
		}
		if rootVal.Kind == query.ValueNodes && len(rootVal.Nodes) > 0 {
			outerHTML = rootVal.Nodes[0].OuterHTML()
		}
	}
	if outerHTML == "" {
		return []any{}, nil
	}

	sourceURL := controller.CurrentURL()
	content, title := raceExtract(outerHTML, sourceURL)

	format := rc.Format
	if format == "" {
		format = "text"
	}

	var rendered string
	switch format {
	case "html":
		rendered = content
	case "markdown":
		out, err := p.mdConverter.ConvertString(content, converter.WithDomain(sourceURL))
		if err != nil {
			ec.ReportSoftFail(query.ErrExpressionSyntaxError, "readable_content: markdown conversion failed")
			rendered = content
		} else {
			rendered = out
		}
	default:
		rendered = stripTags(content)
	}

	record := map[string]any{
		"title":   title,
		"content": rendered,
		"format":  format,
	}
	return []any{record}, nil
}

// raceExtract runs readability and the density-scoring pruner concurrently
// and keeps whichever found more text, exactly as cleaner/pipeline.go's
// autoExtract does, generalized to report a title alongside the body.
func raceExtract(outerHTML, sourceURL string) (content, title string) {
	var (
		article  readability.Article
		ok       bool
		pruned   string
		pruneErr error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		article, ok = extractReadability(outerHTML, sourceURL)
	}()
	go func() {
		defer wg.Done()
		pruned, pruneErr = pruneContent(outerHTML)
	}()
	wg.Wait()

	if pruneErr != nil || !ok {
		if ok {
			return article.Content, article.Title
		}
		return pruned, ""
	}

	prunedText := stripTags(pruned)
	readabilityText := strings.TrimSpace(article.TextContent)
	if len(readabilityText) >= len(prunedText) {
		return article.Content, article.Title
	}
	return pruned, article.Title
}

func extractReadability(outerHTML, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return readability.Article{Content: outerHTML, TextContent: outerHTML}, false
	}
	article, err := readability.FromReader(strings.NewReader(outerHTML), parsedURL)
	if err != nil {
		return readability.Article{Content: outerHTML, TextContent: outerHTML}, false
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return readability.Article{Content: outerHTML, TextContent: outerHTML}, false
	}
	return article, true
}

func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}
