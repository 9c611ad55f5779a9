package util

import (
	"bytes"
	"strings"
	"text/template"
)

// funcs are the helpers available to every prompt template.
var funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join": func(items []string, sep string) string {
		return strings.Join(items, sep)
	},
	// inc turns a zero based range index into a one based list number.
	"inc": func(i int) int { return i + 1 },
}

// MustParse parses a template with the shared helper funcs and panics on
// error. Intended for package level template variables.
func MustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

// Execute renders a parsed template into a string.
func Execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTemplate parses and renders text in one step using Go's text/template
// package. This lives in internal to avoid committing to public API stability prematurely.
func RenderTemplate(text string, data any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}
	tmpl, err := template.New("prompt").Funcs(funcs).Parse(text)
	if err != nil {
		return "", err
	}
	return Execute(tmpl, data)
}
