// ABOUTME: Renders the FAQ catalog as a standalone HTML page.
// ABOUTME: The catalog is written as markdown and converted with goldmark.

package content

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
)

var pageTemplate = template.Must(template.New("faq").Parse(`<!DOCTYPE html>
<html lang="vi">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>FAQ</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
h2 { border-bottom: 1px solid #ddd; padding-bottom: .25rem; }
footer { color: #666; font-size: .875rem; margin-top: 3rem; }
</style>
</head>
<body>
{{.Body}}
<footer>Version {{.Version}} · Updated {{.LastUpdated}}</footer>
</body>
</html>
`))

// Markdown writes the catalog as a markdown document.
func (c *Catalog) Markdown() []byte {
	var b bytes.Buffer
	b.WriteString("# FAQ\n\n")
	b.WriteString(c.WelcomeText)
	b.WriteString("\n")
	for _, cat := range c.Sections {
		fmt.Fprintf(&b, "\n## %s\n", cat.Title)
		for _, q := range cat.Questions {
			fmt.Fprintf(&b, "\n### %s\n\n%s\n", q.Question, strings.TrimSpace(q.Answer))
		}
	}
	return b.Bytes()
}

// RenderHTML converts the catalog to a complete HTML page.
func (c *Catalog) RenderHTML() ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert(c.Markdown(), &body); err != nil {
		return nil, fmt.Errorf("converting markdown: %w", err)
	}

	var page bytes.Buffer
	err := pageTemplate.Execute(&page, struct {
		Body        template.HTML
		Version     string
		LastUpdated string
	}{
		Body:        template.HTML(body.String()), //nolint:gosec // goldmark escapes raw HTML by default
		Version:     c.Metadata.Version,
		LastUpdated: c.Metadata.LastUpdated,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return page.Bytes(), nil
}
