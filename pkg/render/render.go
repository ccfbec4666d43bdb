// Package render provides small HTML helpers for building page render
// callbacks: escaping and a minimal document shell. Applications with real
// templating needs bring their own engine; the ISR pipeline only sees the
// final HTML string.
package render

import (
	"io"
	"strings"
)

// EscapeHTML escapes text for safe inclusion in HTML content.
// It converts special characters to their HTML entity equivalents
// to prevent XSS attacks.
func EscapeHTML(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))

	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&#39;")
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}

// EscapeAttr escapes text for safe inclusion in HTML attribute values.
// In addition to the standard HTML entities, it also escapes
// whitespace characters that could break attribute parsing.
func EscapeAttr(s string) string {
	var buf strings.Builder
	buf.Grow(len(s))

	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&#39;")
		case '\n':
			buf.WriteString("&#10;")
		case '\r':
			buf.WriteString("&#13;")
		case '\t':
			buf.WriteString("&#9;")
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}

// Page describes a minimal HTML document.
type Page struct {
	// Lang is the html element's lang attribute. Default: "en".
	Lang string

	// Title is the document title. Escaped.
	Title string

	// Head is additional raw markup for the head element. Not escaped.
	Head string

	// Body is the raw body markup. Not escaped.
	Body string
}

// Render writes the full document to w.
func (p Page) Render(w io.Writer) error {
	lang := p.Lang
	if lang == "" {
		lang = "en"
	}

	var buf strings.Builder
	buf.WriteString("<!DOCTYPE html>\n")
	buf.WriteString(`<html lang="` + EscapeAttr(lang) + "\">\n<head>\n")
	buf.WriteString(`<meta charset="utf-8">` + "\n")
	buf.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	if p.Title != "" {
		buf.WriteString("<title>" + EscapeHTML(p.Title) + "</title>\n")
	}
	if p.Head != "" {
		buf.WriteString(p.Head)
		if !strings.HasSuffix(p.Head, "\n") {
			buf.WriteString("\n")
		}
	}
	buf.WriteString("</head>\n<body>\n")
	buf.WriteString(p.Body)
	if p.Body != "" && !strings.HasSuffix(p.Body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("</body>\n</html>\n")

	_, err := io.WriteString(w, buf.String())
	return err
}

// String renders the document to a string.
func (p Page) String() string {
	var buf strings.Builder
	// strings.Builder never returns a write error.
	_ = p.Render(&buf)
	return buf.String()
}
