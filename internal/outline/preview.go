package outline

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
)

const previewPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>%s</title></head>
<body>
%s</body>
</html>
`

// Markdown renders the outline as a markdown document: the deck title as a
// heading followed by one section per slide.
func (o *Outline) Markdown(subtitle string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(o.Title()))
	if subtitle != "" {
		fmt.Fprintf(&sb, "_%s_\n\n", escapeMarkdown(subtitle))
	}
	for i, s := range o.Slides {
		fmt.Fprintf(&sb, "## %d. %s\n\n%s\n\n", i+1, escapeMarkdown(s.Title), escapeMarkdown(s.Content))
	}
	return sb.String()
}

// PreviewHTML renders the outline as a standalone HTML page.
func (o *Outline) PreviewHTML(subtitle string) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(o.Markdown(subtitle)), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return []byte(fmt.Sprintf(previewPage, html.EscapeString(o.Title()), body.String())), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"#", `\#`,
	"<", "&lt;",
	">", "&gt;",
	"[", `\[`,
	"]", `\]`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
