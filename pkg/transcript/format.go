package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", errors.Errorf("unknown format %q (json, yaml, markdown, html)", s)
	}
}

func (f Format) Extension() string {
	switch f {
	case FormatYAML:
		return ".yaml"
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	default:
		return ".json"
	}
}

func Write(w io.Writer, t Transcript, f Format) error {
	switch f {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return errors.Wrap(enc.Encode(t), "encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return errors.Wrap(enc.Close(), "encode yaml")
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(t))
		return err
	case FormatHTML:
		return writeHTML(w, t)
	default:
		return errors.Errorf("unsupported format %q", f)
	}
}

// Markdown renders the transcript as a readable document.
func Markdown(t Transcript) string {
	var b strings.Builder
	title := t.Title
	if title == "" {
		title = t.Topic
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if t.Title != "" && t.Topic != "" {
		fmt.Fprintf(&b, "**Topic:** %s\n\n", t.Topic)
	}
	fmt.Fprintf(&b, "- Session: `%s`\n", t.SessionID)
	if t.Status != "" {
		fmt.Fprintf(&b, "- Status: %s\n", t.Status)
	}
	if !t.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", t.CreatedAt.Format("2006-01-02 15:04"))
	}
	if t.EndedAt != nil {
		fmt.Fprintf(&b, "- Ended: %s\n", t.EndedAt.Format("2006-01-02 15:04"))
	}
	if len(t.Agents) > 0 {
		b.WriteString("\n## Participants\n\n")
		for _, a := range t.Agents {
			fmt.Fprintf(&b, "- **%s**", a.Nickname)
			if a.Persona != "" {
				fmt.Fprintf(&b, ": %s", a.Persona)
			}
			if a.ModelName != "" {
				fmt.Fprintf(&b, " (`%s`)", a.ModelName)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n## Conversation\n")
	names := map[string]string{}
	for _, m := range t.Messages {
		names[m.ID] = m.Speaker()
	}
	for _, m := range t.Messages {
		fmt.Fprintf(&b, "\n### %s", m.Speaker())
		if !m.CreatedAt.IsZero() {
			fmt.Fprintf(&b, " · %s", m.CreatedAt.Format("15:04:05"))
		}
		b.WriteString("\n\n")
		if to, ok := names[m.TargetMessageID]; ok && m.TargetMessageID != "" {
			fmt.Fprintf(&b, "> replying to %s\n\n", to)
		}
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString("\n")
	}
	return b.String()
}

func writeHTML(w io.Writer, t Transcript) error {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(t)), &body); err != nil {
		return errors.Wrap(err, "render html")
	}
	title := t.Title
	if title == "" {
		title = t.Topic
	}
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), body.String())
	return err
}
