package render

import (
	"strings"
	"testing"
)

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"angle brackets", "<script>", "&lt;script&gt;"},
		{"ampersand", "a & b", "a &amp; b"},
		{"quotes", `say "hi" 'there'`, "say &quot;hi&quot; &#39;there&#39;"},
		{"unicode untouched", "héllo → ok", "héllo → ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeHTML(tt.input); got != tt.want {
				t.Errorf("EscapeHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeAttr(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "value", "value"},
		{"newline", "a\nb", "a&#10;b"},
		{"tab and cr", "a\tb\r", "a&#9;b&#13;"},
		{"quote", `x="1"`, "x=&quot;1&quot;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeAttr(tt.input); got != tt.want {
				t.Errorf("EscapeAttr(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPageRender(t *testing.T) {
	page := Page{
		Title: "Blog & News",
		Head:  `<link rel="stylesheet" href="/app.css">`,
		Body:  "<h1>Hello</h1>",
	}
	html := page.String()

	if !strings.HasPrefix(html, "<!DOCTYPE html>") {
		t.Error("missing doctype")
	}
	if !strings.Contains(html, `<html lang="en">`) {
		t.Error("missing default lang")
	}
	if !strings.Contains(html, "<title>Blog &amp; News</title>") {
		t.Errorf("title not escaped: %s", html)
	}
	if !strings.Contains(html, `<link rel="stylesheet" href="/app.css">`) {
		t.Error("head markup dropped")
	}
	if !strings.Contains(html, "<h1>Hello</h1>") {
		t.Error("body markup dropped")
	}
}

func TestPageCustomLang(t *testing.T) {
	html := Page{Lang: "de", Body: "<p>hallo</p>"}.String()
	if !strings.Contains(html, `<html lang="de">`) {
		t.Errorf("lang not applied: %s", html)
	}
}

func TestPageEmpty(t *testing.T) {
	html := Page{}.String()
	if !strings.Contains(html, "<body>\n</body>") {
		t.Errorf("empty body malformed: %s", html)
	}
	if strings.Contains(html, "<title>") {
		t.Error("empty title should be omitted")
	}
}
