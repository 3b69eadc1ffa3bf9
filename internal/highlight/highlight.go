// Package highlight turns a snippet's source code into a standalone HTML
// document using chroma.
//
// HOW CHROMA WORKS:
// A lexer splits source code into tokens (keyword, string, comment...).
// A style maps token types to colours. A formatter writes the tokens out,
// here as HTML with CSS classes, so the stylesheet can be emitted once in
// the document head.
package highlight

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const (
	DefaultLanguage = "python"
	DefaultStyle    = "friendly"
)

var (
	ErrUnknownLanguage = errors.New("highlight: unknown language")
	ErrUnknownStyle    = errors.New("highlight: unknown style")
)

var documentTmpl = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <style>
{{.CSS}}
  </style>
</head>
<body>
<h2>{{.Title}}</h2>
{{.Code}}
</body>
</html>
`))

type document struct {
	Title string
	CSS   template.CSS
	Code  template.HTML
}

// Options controls a single Render call.
type Options struct {
	Language string
	Style    string
	LineNos  bool
	Title    string
}

// Render highlights code and returns a complete HTML document.
// Unknown languages or styles are reported as errors; callers validate with
// ValidLanguage and ValidStyle first.
func Render(code string, opts Options) (string, error) {
	lexer := lexerFor(opts.Language)
	if lexer == nil {
		return "", fmt.Errorf("%w %q", ErrUnknownLanguage, opts.Language)
	}
	style, ok := styleFor(opts.Style)
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownStyle, opts.Style)
	}

	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(opts.LineNos),
		chromahtml.LineNumbersInTable(true),
		chromahtml.TabWidth(4),
	)

	// Coalesce merges runs of identical tokens, which keeps the markup small.
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("highlight: tokenising: %w", err)
	}

	var codeBuf, cssBuf bytes.Buffer
	if err := formatter.Format(&codeBuf, style, iterator); err != nil {
		return "", fmt.Errorf("highlight: formatting: %w", err)
	}
	if err := formatter.WriteCSS(&cssBuf, style); err != nil {
		return "", fmt.Errorf("highlight: writing css: %w", err)
	}

	var out bytes.Buffer
	err = documentTmpl.Execute(&out, document{
		Title: opts.Title,
		CSS:   template.CSS(cssBuf.String()),
		Code:  template.HTML(codeBuf.String()),
	})
	if err != nil {
		return "", fmt.Errorf("highlight: rendering document: %w", err)
	}
	return out.String(), nil
}

// ValidLanguage reports whether name is a known lexer name or alias.
// Matching is case-insensitive; filenames like "main.go" are not accepted.
func ValidLanguage(name string) bool {
	return lexerFor(name) != nil
}

// ValidStyle reports whether name is a registered style.
func ValidStyle(name string) bool {
	_, ok := styleFor(name)
	return ok
}

// Languages returns the sorted, de-duplicated lexer names and aliases.
func Languages() []string {
	idx := languageIndex()
	out := make([]string, 0, len(idx))
	for name := range idx {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Styles returns the sorted style names.
func Styles() []string {
	return styles.Names()
}

var (
	indexOnce sync.Once
	index     map[string]chroma.Lexer
)

// languageIndex maps every lower-cased lexer name and alias to its lexer.
// lexers.Get also matches filenames and mime types, which is too loose for
// validating a "language" field.
func languageIndex() map[string]chroma.Lexer {
	indexOnce.Do(func() {
		index = make(map[string]chroma.Lexer)
		for _, l := range lexers.GlobalLexerRegistry.Lexers {
			cfg := l.Config()
			index[strings.ToLower(cfg.Name)] = l
			for _, alias := range cfg.Aliases {
				index[strings.ToLower(alias)] = l
			}
		}
	})
	return index
}

func lexerFor(name string) chroma.Lexer {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	return languageIndex()[name]
}

func styleFor(name string) (*chroma.Style, bool) {
	// styles.Get falls back to a default for unknown names, so look the
	// name up in the registry directly.
	s, ok := styles.Registry[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}
