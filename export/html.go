package export

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// HTML renders the document as a standalone HTML fragment by converting
// its Markdown export.
func HTML(g *section.Graph, doc *paper.Document) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(g, doc)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}
