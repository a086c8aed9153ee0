package browser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Widget Catalog</title>
  <style>body { color: red; }</style>
  <script>window.tracker = true;</script>
</head>
<body>
  <h1>Widgets</h1>
  <p>All widgets ship <b>fast</b>.</p>
  <a href="/buy" class="cta" onclick="track()">Buy now</a>
  <noscript>Enable JavaScript</noscript>
</body>
</html>`

func TestCleanContentText(t *testing.T) {
	content, truncated, err := cleanContent(samplePage, FormatText, 1000)
	require.NoError(t, err)
	assert.False(t, truncated)

	assert.Contains(t, content, "Widgets")
	assert.Contains(t, content, "All widgets ship fast")
	assert.Contains(t, content, "Buy now")
	assert.NotContains(t, content, "tracker", "script content must be stripped")
	assert.NotContains(t, content, "color: red", "style content must be stripped")
	assert.NotContains(t, content, "Enable JavaScript", "noscript content must be stripped")
	assert.NotContains(t, content, "Widget Catalog", "head content must not leak into text")
}

func TestCleanContentMarkdownIncludesTitle(t *testing.T) {
	content, _, err := cleanContent(samplePage, FormatMarkdown, 1000)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content, "# Widget Catalog"), "markdown should lead with the page title")
	assert.Contains(t, content, "Widgets")
}

func TestCleanContentHTMLKeepsTargetingAttributes(t *testing.T) {
	content, _, err := cleanContent(samplePage, FormatHTML, 4000)
	require.NoError(t, err)

	assert.Contains(t, content, `<a href="/buy" class="cta">`)
	assert.NotContains(t, content, "onclick", "event handler attributes must be dropped")
	assert.NotContains(t, content, "<script")
	assert.NotContains(t, content, "<style")
}

func TestCleanContentTruncates(t *testing.T) {
	content, truncated, err := cleanContent(samplePage, FormatText, 10)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Len(t, content, 10)
}

func TestCleanContentRejectsUnknownFormat(t *testing.T) {
	_, _, err := cleanContent(samplePage, ExtractFormat("pdf"), 100)
	assert.Error(t, err)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", 6) // two bytes per rune

	out, truncated := truncate(s, 5)
	assert.True(t, truncated)
	assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
	assert.Equal(t, "éé", out)

	out, truncated = truncate(s, 12)
	assert.False(t, truncated)
	assert.Equal(t, s, out)
}

func TestNormalizeSpaceCollapsesBlankLines(t *testing.T) {
	in := "  first \n\n\n\n second\n\n"
	assert.Equal(t, "first\n\nsecond", normalizeSpace(in))
}
