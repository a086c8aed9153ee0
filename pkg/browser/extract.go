package browser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/net/html"
)

// extract fills result.Content from the current page according to the
// action's format and optional selector.
func (h *Handle) extract(page playwright.Page, action Action, result *Result) error {
	maxLength := action.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	format := action.Format
	if format == "" {
		format = FormatMarkdown
	}

	if action.Selector != "" {
		element, err := page.QuerySelector(action.Selector)
		if err != nil {
			return &ActionError{Op: "selector query", Err: err}
		}
		if element == nil {
			return &ActionError{Op: "extract", Err: fmt.Errorf("no element matches selector %q", action.Selector)}
		}
		text, err := element.TextContent()
		if err != nil {
			return &ActionError{Op: "text extraction", Err: err}
		}
		result.Content, result.Truncated = truncate(normalizeSpace(text), maxLength)
		return nil
	}

	raw, err := page.Content()
	if err != nil {
		return &ActionError{Op: "content", Err: err}
	}

	content, truncated, err := cleanContent(raw, format, maxLength)
	if err != nil {
		return &ActionError{Op: "extract", Err: err}
	}
	result.Content = content
	result.Truncated = truncated
	return nil
}

// cleanContent parses raw HTML and renders it in the requested format with
// scripts, styles, and other noise removed.
func cleanContent(raw string, format ExtractFormat, maxLength int) (string, bool, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", false, fmt.Errorf("failed to parse HTML: %w", err)
	}

	switch format {
	case FormatText:
		text := documentText(doc)
		out, truncated := truncate(text, maxLength)
		return out, truncated, nil

	case FormatMarkdown:
		var b strings.Builder
		if title := documentTitle(doc); title != "" {
			fmt.Fprintf(&b, "# %s\n\n", title)
		}
		b.WriteString(documentText(doc))
		out, truncated := truncate(b.String(), maxLength)
		return out, truncated, nil

	case FormatHTML:
		var b strings.Builder
		renderCleanHTML(doc, &b)
		out, truncated := truncate(b.String(), maxLength)
		return out, truncated, nil

	default:
		return "", false, fmt.Errorf("unsupported format: %s", format)
	}
}

// documentText collects the visible text of the document, one line per
// block element, with noise elements dropped entirely.
func documentText(doc *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
			return
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if noiseElements[tag] {
				return
			}
			if blockElements[tag] && b.Len() > 0 {
				b.WriteByte('\n')
			}
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return normalizeSpace(b.String())
}

// renderCleanHTML re-emits the document's element structure, keeping only
// attributes useful for targeting (ids, classes, hrefs, form fields).
func renderCleanHTML(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteString(html.EscapeString(text))
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if noiseElements[tag] {
			return
		}
		b.WriteByte('<')
		b.WriteString(tag)
		for _, attr := range n.Attr {
			if keepAttribute(tag, strings.ToLower(attr.Key)) {
				fmt.Fprintf(b, " %s=%q", attr.Key, attr.Val)
			}
		}
		b.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderCleanHTML(c, b)
		}
		if !voidElements[tag] {
			fmt.Fprintf(b, "</%s>", tag)
		}
		if blockElements[tag] {
			b.WriteByte('\n')
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderCleanHTML(c, b)
	}
}

// documentTitle returns the contents of the first <title> element.
func documentTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

var noiseElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"embed":    true,
	"object":   true,
	"svg":      true,
	"head":     true,
}

var blockElements = map[string]bool{
	"div": true, "p": true, "section": true, "article": true,
	"header": true, "footer": true, "nav": true, "main": true, "aside": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true,
	"table": true, "tr": true, "td": true, "th": true,
	"form": true, "fieldset": true, "blockquote": true, "pre": true,
	"br": true, "hr": true,
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

func keepAttribute(tag, attr string) bool {
	switch attr {
	case "id", "class", "role", "aria-label":
		return true
	}
	if strings.HasPrefix(attr, "data-") {
		return true
	}
	switch tag {
	case "a":
		return attr == "href"
	case "img":
		return attr == "src" || attr == "alt"
	case "input", "textarea", "select":
		return attr == "name" || attr == "type" || attr == "placeholder" || attr == "value"
	case "form":
		return attr == "action" || attr == "method"
	}
	return false
}

// normalizeSpace collapses runs of blank lines and trims the edges.
func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// truncate cuts s to at most maxLength bytes, backing up to the nearest
// rune boundary so the result stays valid UTF-8.
func truncate(s string, maxLength int) (string, bool) {
	if len(s) <= maxLength {
		return s, false
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
