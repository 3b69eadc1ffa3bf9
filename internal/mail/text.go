package mail

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockTags start and end a paragraph in the text rendering.
var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Tr: true,
}

// HTMLToText derives the plain-text alternative of an HTML email.
//
// The tokenizer walks the document once:
//   - text inside <head>, <style> and <script> is dropped
//   - block elements become blank lines, <br> a newline, <li> a "- " bullet
//   - a link keeps its text and gets its target appended in parentheses,
//     so the reset URL survives in the text part
func HTMLToText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))

	var b strings.Builder
	skip := 0
	href := ""
	linkStart := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed document; either way we are done.
			return tidy(b.String())

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := collapseSpaces(string(z.Text()))
			if strings.HasPrefix(text, " ") && (b.Len() == 0 || isSpace(b.String()[b.Len()-1])) {
				text = text[1:]
			}
			b.WriteString(text)

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := atom.Lookup(name)
			switch {
			case tag == atom.Head || tag == atom.Style || tag == atom.Script:
				if tt == html.StartTagToken {
					skip++
				}
			case tag == atom.Br:
				b.WriteString("\n")
			case tag == atom.Li:
				b.WriteString("\n- ")
			case tag == atom.A:
				href = attr(z, hasAttr, "href")
				linkStart = b.Len()
			case blockTags[tag]:
				b.WriteString("\n\n")
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := atom.Lookup(name)
			switch {
			case tag == atom.Head || tag == atom.Style || tag == atom.Script:
				if skip > 0 {
					skip--
				}
			case tag == atom.A:
				text := strings.TrimSpace(b.String()[linkStart:])
				if href != "" && text != href {
					b.WriteString(" (" + href + ")")
				}
				href = ""
			case blockTags[tag]:
				b.WriteString("\n\n")
			}
		}
	}
}

func attr(z *html.Tokenizer, hasAttr bool, want string) string {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == want {
			return string(val)
		}
	}
	return ""
}

func collapseSpaces(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" {
			return " "
		}
		return ""
	}
	out := strings.Join(fields, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// tidy trims every line and squeezes runs of blank lines into one.
func tidy(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
