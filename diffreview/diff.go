// Package diffreview computes the two-level diff between a section's
// current content and an AI-proposed rewrite, and gates commitment of the
// proposal behind an explicit accept/reject decision.
//
// The diff runs at line granularity first. A removed run immediately
// followed by an added run is treated as a modification: the pair is
// re-diffed at character granularity and rendered as inline spans, split
// back into aligned rows. Pure insertions and deletions render as whole
// lines against an empty counterpart, so in-place edits get intra-line
// highlighting while block moves stay readable.
package diffreview

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op classifies a span of text within a line.
type Op int

const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

// Kind classifies a rendered line.
type Kind string

const (
	KindContext Kind = "context"
	KindAdded   Kind = "added"
	KindRemoved Kind = "removed"
	KindEmpty   Kind = "empty"
)

// Span is a run of text with one classification. Text keeps its trailing
// newline when the source had one, so concatenating spans reproduces the
// source exactly; renderers trim it.
type Span struct {
	Op   Op
	Text string
}

// Line is one rendered line of a pane.
type Line struct {
	// Number is the 1-based line number in its pane, 0 for empty filler.
	Number int
	Kind   Kind
	Spans  []Span
}

// Text returns the line's visible text for the given pane side: OpDelete
// spans belong to the old pane, OpInsert spans to the new pane.
func (l *Line) Text(drop Op) string {
	var b strings.Builder
	for _, sp := range l.Spans {
		if sp.Op == drop {
			continue
		}
		b.WriteString(sp.Text)
	}
	return b.String()
}

// Row pairs an old-pane line with a new-pane line for side-by-side display.
type Row struct {
	Old *Line
	New *Line
}

// Compare diffs original against proposed and returns aligned rows.
func Compare(original, proposed string) []Row {
	dmp := diffmatchpatch.New()
	a, b, lineIndex := dmp.DiffLinesToChars(original, proposed)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineIndex)

	var rows []Row
	oldNum, newNum := 1, 1

	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for _, line := range splitLines(d.Text) {
				rows = append(rows, Row{
					Old: &Line{Number: oldNum, Kind: KindContext, Spans: []Span{{OpEqual, line}}},
					New: &Line{Number: newNum, Kind: KindContext, Spans: []Span{{OpEqual, line}}},
				})
				oldNum++
				newNum++
			}

		case diffmatchpatch.DiffDelete:
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				modRows := modificationRows(dmp, d.Text, diffs[i+1].Text, &oldNum, &newNum)
				rows = append(rows, modRows...)
				i++ // The paired insert run is consumed.
				continue
			}
			for _, line := range splitLines(d.Text) {
				rows = append(rows, Row{
					Old: &Line{Number: oldNum, Kind: KindRemoved, Spans: []Span{{OpDelete, line}}},
					New: &Line{Kind: KindEmpty},
				})
				oldNum++
			}

		case diffmatchpatch.DiffInsert:
			for _, line := range splitLines(d.Text) {
				rows = append(rows, Row{
					Old: &Line{Kind: KindEmpty},
					New: &Line{Number: newNum, Kind: KindAdded, Spans: []Span{{OpInsert, line}}},
				})
				newNum++
			}
		}
	}

	return rows
}

// modificationRows renders a removed/added run pair as aligned rows with
// character-level spans.
func modificationRows(dmp *diffmatchpatch.DiffMatchPatch, removed, added string, oldNum, newNum *int) []Row {
	charDiffs := dmp.DiffCleanupSemantic(dmp.DiffMain(removed, added, false))

	var oldSpans, newSpans []Span
	for _, d := range charDiffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldSpans = append(oldSpans, Span{OpEqual, d.Text})
			newSpans = append(newSpans, Span{OpEqual, d.Text})
		case diffmatchpatch.DiffDelete:
			oldSpans = append(oldSpans, Span{OpDelete, d.Text})
		case diffmatchpatch.DiffInsert:
			newSpans = append(newSpans, Span{OpInsert, d.Text})
		}
	}

	oldLines := splitSpanLines(oldSpans)
	newLines := splitSpanLines(newSpans)

	n := max(len(oldLines), len(newLines))
	rows := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		row := Row{Old: &Line{Kind: KindEmpty}, New: &Line{Kind: KindEmpty}}
		if i < len(oldLines) {
			row.Old = &Line{Number: *oldNum, Kind: KindRemoved, Spans: oldLines[i]}
			*oldNum++
		}
		if i < len(newLines) {
			row.New = &Line{Number: *newNum, Kind: KindAdded, Spans: newLines[i]}
			*newNum++
		}
		rows = append(rows, row)
	}
	return rows
}

// splitLines splits run text into lines, each keeping its trailing newline.
func splitLines(text string) []string {
	var lines []string
	for len(text) > 0 {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:i+1])
		text = text[i+1:]
	}
	return lines
}

// splitSpanLines splits a span stream into per-line span slices, newlines
// kept on the last span of each line.
func splitSpanLines(spans []Span) [][]Span {
	var lines [][]Span
	var cur []Span
	for _, sp := range spans {
		text := sp.Text
		for len(text) > 0 {
			i := strings.IndexByte(text, '\n')
			if i < 0 {
				cur = append(cur, Span{sp.Op, text})
				break
			}
			cur = append(cur, Span{sp.Op, text[:i+1]})
			lines = append(lines, cur)
			cur = nil
			text = text[i+1:]
		}
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return lines
}
