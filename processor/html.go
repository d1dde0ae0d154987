// Package processor segments rich article formats into translatable units
// and reassembles them.
package processor

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ZaguanLabs/lingoflow"
	"github.com/ZaguanLabs/lingoflow/document"
	"golang.org/x/net/html"
)

// DefaultIgnoredTags are elements whose text is never translated.
var DefaultIgnoredTags = []string{"script", "style", "code", "pre", "textarea", "noscript"}

// HTMLProcessor extracts and applies translations to HTML articles.
type HTMLProcessor struct {
	ignoredTags map[string]bool
}

// NewHTMLProcessor creates a new HTML processor with default ignored tags.
func NewHTMLProcessor() *HTMLProcessor {
	return NewHTMLProcessorWithIgnoredTags(DefaultIgnoredTags)
}

// NewHTMLProcessorWithIgnoredTags creates a new HTML processor with custom ignored tags.
func NewHTMLProcessorWithIgnoredTags(tags []string) *HTMLProcessor {
	ignored := make(map[string]bool, len(tags))
	for _, tag := range tags {
		ignored[strings.ToLower(tag)] = true
	}
	return &HTMLProcessor{ignoredTags: ignored}
}

// textRef ties a DOM text node to the unit holding its translation.
type textRef struct {
	node *html.Node
	unit string
}

// parsedHTML holds the parsed document and node mappings.
type parsedHTML struct {
	doc      *goquery.Document
	refs     []textRef
	fullPage bool // input had its own <html> element
}

// UnitKey names the n-th unit of an article.
func UnitKey(n int) string {
	return "n" + strconv.Itoa(n)
}

// Extract parses content and returns one unit per distinct trimmed text,
// keyed n0..nN in document order. Repeated texts share a unit.
func (p *HTMLProcessor) Extract(content string) (any, *document.FlatMapping, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, nil, &lingoflow.ProcessorError{
			Message:     "failed to parse HTML",
			Cause:       err,
			ContentType: "html",
		}
	}

	units := document.NewFlatMapping()
	byHash := make(map[string]string)
	parsed := &parsedHTML{
		doc:      doc,
		fullPage: strings.Contains(strings.ToLower(content), "<html"),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && p.skipped(n) {
			return
		}

		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				hash := lingoflow.HashText(trimmed)
				key, seen := byHash[hash]
				if !seen {
					key = UnitKey(units.Len())
					byHash[hash] = key
					units.Set(key, trimmed)
				}
				parsed.refs = append(parsed.refs, textRef{node: n, unit: key})
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for _, n := range doc.Nodes {
		walk(n)
	}

	return parsed, units, nil
}

func (p *HTMLProcessor) skipped(n *html.Node) bool {
	if p.ignoredTags[strings.ToLower(n.Data)] {
		return true
	}
	for _, attr := range n.Attr {
		if attr.Key == "data-no-translate" || (attr.Key == "translate" && attr.Val == "no") {
			return true
		}
	}
	return false
}

// Apply writes translated units back into the parsed document. Units
// missing from translated keep their source text. Full pages get lang
// and dir attributes for targetLang; fragments are returned as fragments.
func (p *HTMLProcessor) Apply(parsed any, translated *document.FlatMapping, targetLang string) (string, error) {
	ph, ok := parsed.(*parsedHTML)
	if !ok {
		return "", &lingoflow.ProcessorError{
			Message:     "invalid parsed content type",
			ContentType: "html",
		}
	}

	for _, ref := range ph.refs {
		if text, ok := translated.Get(ref.unit); ok {
			ref.node.Data = preserveWhitespace(ref.node.Data, text)
		}
	}

	var (
		out string
		err error
	)
	if ph.fullPage {
		if targetLang != "" {
			htmlTag := ph.doc.Find("html").First()
			htmlTag.SetAttr("lang", lingoflow.ToHTMLLang(targetLang))
			htmlTag.SetAttr("dir", lingoflow.Direction(targetLang))
		}
		out, err = goquery.OuterHtml(ph.doc.Selection)
	} else {
		out, err = ph.doc.Find("body").Html()
	}
	if err != nil {
		return "", &lingoflow.ProcessorError{
			Message:     "failed to serialize HTML",
			Cause:       err,
			ContentType: "html",
		}
	}
	return out, nil
}

// ContentType returns "html".
func (p *HTMLProcessor) ContentType() string {
	return "html"
}

// preserveWhitespace keeps the original leading and trailing whitespace.
func preserveWhitespace(original, translated string) string {
	leadingLen := len(original) - len(strings.TrimLeft(original, " \t\n\r"))
	trailingLen := len(original) - len(strings.TrimRight(original, " \t\n\r"))
	if leadingLen == len(original) {
		return original
	}
	return original[:leadingLen] + strings.TrimSpace(translated) + original[len(original)-trailingLen:]
}

var _ lingoflow.ContentProcessor = (*HTMLProcessor)(nil)
