// Package export renders a paper into publishable formats. Annotation
// markup is stripped first; sections export in structure order with the
// numbering rules of the editor.
package export

import (
	"fmt"
	"strings"

	"github.com/paperdesk/paperdesk/annotation"
	"github.com/paperdesk/paperdesk/paper"
	"github.com/paperdesk/paperdesk/section"
)

// Markdown renders the document as a Markdown string.
//
// The title becomes the H1 and exports its content directly; every other
// section exports under an H2 carrying its display name. Sections marked
// numbered share one running counter. Sections that are empty after
// annotation stripping are skipped entirely.
func Markdown(g *section.Graph, doc *paper.Document) string {
	var parts []string
	counter := 1

	for _, spec := range g.Specs() {
		st, ok := doc.Sections[spec.Key]
		if !ok || strings.TrimSpace(st.Content) == "" {
			continue
		}

		cleaned := annotation.Strip(strings.TrimSpace(st.Content))
		if strings.TrimSpace(cleaned) == "" {
			continue
		}

		switch {
		case spec.Key == section.KeyTitle:
			parts = append(parts, "# "+cleaned)
		case spec.Key == section.KeyAbstract || spec.Key == section.KeyKeywords:
			parts = append(parts, fmt.Sprintf("## %s\n\n%s", spec.Name, cleaned))
		case spec.Numbered:
			parts = append(parts, fmt.Sprintf("## %d. %s\n\n%s", counter, spec.Name, cleaned))
			counter++
		default:
			parts = append(parts, fmt.Sprintf("## %s\n\n%s", spec.Name, cleaned))
		}

		// Extra blank line between sections.
		parts = append(parts, "\n")
	}

	return strings.Join(parts, "\n")
}
