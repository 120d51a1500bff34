// Package annotation encodes and decodes the inline review markup embedded
// in section content. An annotation wraps a span of the text and attaches a
// reviewer comment:
//
//	{{span}}【修改意见：comment】
//
// Annotations are not stored separately — they are the content. Parsing is
// re-derived from the raw text on demand, and every operation is a pure
// string transform; callers write the result back into the section store.
//
// The grammar is deliberately non-nesting: the first "}}" closes the span,
// so a span containing "}}" truncates the token. This matches the
// historical behavior and the export cleaning rules.
package annotation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	spanOpen     = "{{"
	spanClose    = "}}"
	commentOpen  = "【修改意见："
	commentClose = "】"
)

// Errors reported by codec operations.
var (
	// ErrEmptySpan is returned when the selected span has zero length.
	ErrEmptySpan = errors.New("annotation: span is empty")

	// ErrEmptyComment is returned when the comment is blank.
	ErrEmptyComment = errors.New("annotation: comment is empty")
)

// TokenNotFoundError reports that a raw token is not a literal substring of
// the content it was supposed to be found in.
type TokenNotFoundError struct {
	Token string
}

func (e *TokenNotFoundError) Error() string {
	return fmt.Sprintf("annotation: token %q not found in content", e.Token)
}

// Token is one parsed annotation occurrence.
type Token struct {
	// Span is the annotated text.
	Span string

	// Comment is the reviewer comment, without the marker.
	Comment string

	// Raw is the full token as it appears in the content.
	Raw string

	// Start and End are the byte offsets of Raw within the content.
	Start int
	End   int
}

// Insert wraps content[start:end] as an annotation carrying comment.
// Offsets are byte offsets and must fall on UTF-8 rune boundaries.
func Insert(content string, start, end int, comment string) (string, error) {
	if start < 0 || end > len(content) || start > end {
		return "", fmt.Errorf("annotation: span [%d:%d) out of range for content of %d bytes", start, end, len(content))
	}
	if start == end {
		return "", ErrEmptySpan
	}
	if !boundary(content, start) || !boundary(content, end) {
		return "", fmt.Errorf("annotation: span [%d:%d) splits a UTF-8 sequence", start, end)
	}
	if strings.TrimSpace(comment) == "" {
		return "", ErrEmptyComment
	}

	var b strings.Builder
	b.Grow(len(content) + len(spanOpen) + len(spanClose) + len(commentOpen) + len(comment) + len(commentClose))
	b.WriteString(content[:start])
	b.WriteString(spanOpen)
	b.WriteString(content[start:end])
	b.WriteString(spanClose)
	b.WriteString(commentOpen)
	b.WriteString(comment)
	b.WriteString(commentClose)
	b.WriteString(content[end:])
	return b.String(), nil
}

// EditComment replaces the comment of the token matching rawToken verbatim
// inside content. The span text is untouched.
func EditComment(content, rawToken, newComment string) (string, error) {
	if strings.TrimSpace(newComment) == "" {
		return "", ErrEmptyComment
	}
	span, _, ok := splitToken(rawToken)
	if !ok {
		return "", &TokenNotFoundError{Token: rawToken}
	}
	idx := strings.Index(content, rawToken)
	if idx < 0 {
		return "", &TokenNotFoundError{Token: rawToken}
	}
	replacement := spanOpen + span + spanClose + commentOpen + newComment + commentClose
	return content[:idx] + replacement + content[idx+len(rawToken):], nil
}

// Remove replaces the full token with just its span text, un-annotating it.
func Remove(content, rawToken string) (string, error) {
	span, _, ok := splitToken(rawToken)
	if !ok {
		return "", &TokenNotFoundError{Token: rawToken}
	}
	idx := strings.Index(content, rawToken)
	if idx < 0 {
		return "", &TokenNotFoundError{Token: rawToken}
	}
	return content[:idx] + span + content[idx+len(rawToken):], nil
}

// Parse scans content for annotation tokens, leftmost first and
// non-overlapping. Malformed fragments (an opener without the full token
// behind it) are skipped, not errors.
func Parse(content string) []Token {
	var tokens []Token
	pos := 0
	for pos < len(content) {
		rel := strings.Index(content[pos:], spanOpen)
		if rel < 0 {
			break
		}
		open := pos + rel

		tok, end, ok := scanToken(content, open)
		if !ok {
			// Not a token; resume past this opener.
			pos = open + len(spanOpen)
			continue
		}
		tokens = append(tokens, tok)
		pos = end
	}
	return tokens
}

// Strip removes every annotation token from content, keeping span text.
func Strip(content string) string {
	tokens := Parse(content)
	if len(tokens) == 0 {
		return content
	}
	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, tok := range tokens {
		b.WriteString(content[pos:tok.Start])
		b.WriteString(tok.Span)
		pos = tok.End
	}
	b.WriteString(content[pos:])
	return b.String()
}

// scanToken attempts to read a full token starting at the opener offset.
// The first span close wins; spans and comments must be non-empty.
func scanToken(content string, open int) (Token, int, bool) {
	spanStart := open + len(spanOpen)
	rel := strings.Index(content[spanStart:], spanClose)
	if rel < 1 { // missing or empty span
		return Token{}, 0, false
	}
	span := content[spanStart : spanStart+rel]

	markerStart := spanStart + rel + len(spanClose)
	if !strings.HasPrefix(content[markerStart:], commentOpen) {
		return Token{}, 0, false
	}
	commentStart := markerStart + len(commentOpen)
	rel = strings.Index(content[commentStart:], commentClose)
	if rel < 1 { // missing or empty comment
		return Token{}, 0, false
	}
	comment := content[commentStart : commentStart+rel]
	end := commentStart + rel + len(commentClose)

	return Token{
		Span:    span,
		Comment: comment,
		Raw:     content[open:end],
		Start:   open,
		End:     end,
	}, end, true
}

// splitToken decomposes a raw token into span and comment, validating its
// shape.
func splitToken(raw string) (span, comment string, ok bool) {
	tok, end, ok := scanToken(raw, 0)
	if !ok || end != len(raw) || !strings.HasPrefix(raw, spanOpen) {
		return "", "", false
	}
	return tok.Span, tok.Comment, true
}

// boundary reports whether offset i is a rune boundary in s.
func boundary(s string, i int) bool {
	return i == 0 || i == len(s) || utf8.RuneStart(s[i])
}
