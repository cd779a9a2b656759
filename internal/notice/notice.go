// Package notice renders the warning shown when a video link cannot be
// repaired automatically.
package notice

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianfbeck/panopto-relink-cli/internal/panopto"
)

const (
	explanation = "This Panopto link is no longer working. This can occur when Panopto links are copied from a previous academic year or from a Projects or Outreach course."
	action      = "Please re-link this video using these step-by-step instructions:"
	linkText    = "Re-Linking Panopto Videos in a Copied Course"
)

// Data is what a notice shows. Session is optional.
type Data struct {
	RemediationURL string
	Session        *panopto.Session
}

var htmlTemplate = template.Must(template.New("notice").Parse(`<div class="alert alert-danger alert-block">
    <p><strong>Instructors</strong>: {{.Explanation}}</p>
    <p><strong>Action Required</strong>: {{.Action}}
        <a href="{{.RemediationURL}}" target="_blank" rel="noopener">{{.LinkText}}</a>.
    </p>
{{- with .Session}}
    <br>
    <strong>Panopto Video Details</strong>:
{{- if .ThumbnailURL}}
    <img class="img-fluid" style="float: right;" role="presentation" src="{{.ThumbnailURL}}" alt="" width="200">
{{- end}}
    <ul>
        <li>Impacted Video: {{.Name}}</li>
        <li>Folder: {{.FolderName}}</li>
    </ul>
{{- end}}
</div>
`))

type htmlData struct {
	Data
	Explanation string
	Action      string
	LinkText    string
}

// HTML writes the notice as an HTML block. Session fields are escaped.
func HTML(w io.Writer, d Data) error {
	return htmlTemplate.Execute(w, htmlData{Data: d, Explanation: explanation, Action: action, LinkText: linkText})
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1).
			Width(78)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
)

// Terminal renders the notice for a terminal. With plain set no styling is
// applied.
func Terminal(d Data, plain bool) string {
	var b strings.Builder
	line := func(label, text string) {
		if plain {
			fmt.Fprintf(&b, "%s: %s\n", label, text)
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", labelStyle.Render(label), text)
	}

	line("Instructors", explanation)
	line("Action Required", action+" "+d.RemediationURL)
	if s := d.Session; s != nil {
		b.WriteString("\n")
		if plain {
			b.WriteString("Panopto Video Details\n")
		} else {
			b.WriteString(headingStyle.Render("Panopto Video Details") + "\n")
		}
		line("Impacted Video", s.Name)
		line("Folder", s.FolderName)
		if s.ThumbnailURL != "" {
			line("Thumbnail", s.ThumbnailURL)
		}
	}

	out := strings.TrimRight(b.String(), "\n")
	if plain {
		return out + "\n"
	}
	return boxStyle.Render(out) + "\n"
}
