package readable

import (
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Scoring weights and thresholds ported from cleaner/pruning.go's
// density-scoring fallback strategy, unchanged.
const pruneScoreThreshold = 0.0

const (
	wTextDensity   = 3.0
	wLinkDensity   = -2.0
	wTagWeight     = 1.5
	wClassIDWeight = 1.0
	wTextLength    = 0.5
)

var positiveClassIDPatterns = []string{
	"content", "article", "post", "entry", "body", "main", "text",
}

var negativeClassIDPatterns = []string{
	"sidebar", "ad", "widget", "nav", "menu", "comment", "footer",
	"header", "banner", "popup", "modal", "cookie", "social", "share",
	"related", "recommend", "promo",
}

// pruneContent scores each top-level block under <body> and retains only
// blocks above pruneScoreThreshold, falling back to the full body when
// nothing scores high enough.
func pruneContent(outerHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(outerHTML))
	if err != nil {
		return outerHTML, err
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return outerHTML, nil
	}

	var retained []string
	body.Children().Each(func(_ int, el *goquery.Selection) {
		if scoreElement(el) > pruneScoreThreshold {
			if html, err := goquery.OuterHtml(el); err == nil {
				retained = append(retained, html)
			}
		}
	})

	if len(retained) == 0 {
		html, err := body.Html()
		if err != nil {
			return outerHTML, nil
		}
		return html, nil
	}
	return strings.Join(retained, "\n"), nil
}

func scoreElement(el *goquery.Selection) float64 {
	fullHTML, err := goquery.OuterHtml(el)
	if err != nil {
		return 0
	}

	text := strings.TrimSpace(el.Text())
	textLen := len(text)
	totalLen := len(fullHTML)

	textDensity := 0.0
	if totalLen > 0 {
		textDensity = float64(textLen) / float64(totalLen)
	}

	linkTextLen := 0
	el.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkTextLen += len(strings.TrimSpace(a.Text()))
	})
	linkDensity := 0.0
	if textLen > 0 {
		linkDensity = float64(linkTextLen) / float64(textLen)
	}

	tagW := tagWeight(el)
	classIDW := classIDWeight(el)
	textLenScore := math.Log10(float64(textLen) + 1)

	return textDensity*wTextDensity +
		linkDensity*wLinkDensity +
		tagW*wTagWeight +
		classIDW*wClassIDWeight +
		textLenScore*wTextLength
}

func tagWeight(el *goquery.Selection) float64 {
	switch goquery.NodeName(el) {
	case "article", "main", "section":
		return 5.0
	case "nav", "footer", "aside", "header":
		return -5.0
	default:
		return 0.0
	}
}

func classIDWeight(el *goquery.Selection) float64 {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	combined := strings.ToLower(class + " " + id)

	score := 0.0
	for _, pat := range positiveClassIDPatterns {
		if strings.Contains(combined, pat) {
			score += 3.0
			break
		}
	}
	for _, pat := range negativeClassIDPatterns {
		if strings.Contains(combined, pat) {
			score -= 3.0
			break
		}
	}
	return score
}

func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}
