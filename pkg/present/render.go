package present

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pdxmph/huskytrace/pkg/metadata"
	"github.com/pdxmph/huskytrace/pkg/templates"
)

// Built-in output formats. Any other name is looked up as a template.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// RenderOptions controls Render
type RenderOptions struct {
	Styled    bool
	Templates map[string]string
}

// Render writes the view in the named format
func Render(w io.Writer, v *View, format string, opts RenderOptions) error {
	switch format {
	case FormatText, "":
		return RenderText(w, v, opts.Styled)
	case FormatMarkdown, "md":
		return RenderMarkdown(w, v)
	case FormatJSON:
		return RenderJSON(w, v)
	}

	tmpl, ok := opts.Templates[format]
	if !ok {
		return fmt.Errorf("unknown format: %s", format)
	}
	_, err := fmt.Fprintln(w, templates.Process(tmpl, Variables(v)))
	return err
}

const labelWidth = 16

type renderFunc func(strs ...string) string

type theme struct {
	badge, title, subtitle, heading, label, muted, link, summary renderFunc
}

func plain(strs ...string) string {
	return strings.Join(strs, " ")
}

func newTheme(styled bool) theme {
	if !styled {
		return theme{plain, plain, plain, plain, plain, plain, plain, plain}
	}
	return theme{
		badge:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")).Render,
		title:    lipgloss.NewStyle().Bold(true).Render,
		subtitle: lipgloss.NewStyle().Faint(true).Render,
		heading:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Render,
		label:    lipgloss.NewStyle().Faint(true).Render,
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render,
		link:     lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("4")).Render,
		summary:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render,
	}
}

// RenderText writes the results screen for a terminal
func RenderText(w io.Writer, v *View, styled bool) error {
	th := newTheme(styled)
	var b strings.Builder

	b.WriteString(th.badge(ReportBadge) + "\n")
	b.WriteString(th.title(ReportTitle) + "\n")
	b.WriteString(th.subtitle(ReportSubtitle) + "\n\n")

	b.WriteString(th.heading(PreviewTitle) + "\n")
	b.WriteString("  " + th.link(v.PreviewURL) + "\n\n")

	writeRows := func(rows []Row) {
		for _, r := range rows {
			label := fmt.Sprintf("%-*s", labelWidth, r.Label)
			b.WriteString("  " + th.label(label) + r.Value + "\n")
		}
	}

	b.WriteString(th.heading(v.Basic.Title) + "\n")
	writeRows(v.Basic.Rows)
	b.WriteString("\n")

	b.WriteString(th.heading(v.EXIF.Title) + "\n")
	if v.EXIF.Present {
		writeRows(v.EXIF.Rows)
	} else {
		for _, line := range v.EXIF.Empty {
			b.WriteString("  " + th.muted(line) + "\n")
		}
	}
	b.WriteString("\n")

	if loc := v.Location; loc != nil {
		b.WriteString(th.heading(loc.Title) + "\n")
		writeRows(loc.Rows)
		b.WriteString("  " + th.label(MapLinkLabel+":") + " " + th.link(loc.MapURL) + "\n\n")
	}

	b.WriteString(th.summary("✓ "+v.Summary) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderMarkdown writes the results screen as a Markdown report
func RenderMarkdown(w io.Writer, v *View) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", ReportTitle)
	fmt.Fprintf(&b, "![%s](%s)\n\n", PreviewTitle, v.PreviewURL)

	table := func(rows []Row) {
		b.WriteString("| Field | Value |\n|---|---|\n")
		for _, r := range rows {
			fmt.Fprintf(&b, "| %s | %s |\n", r.Label, escapeCell(r.Value))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## %s\n\n", v.Basic.Title)
	table(v.Basic.Rows)

	fmt.Fprintf(&b, "## %s\n\n", v.EXIF.Title)
	if v.EXIF.Present {
		table(v.EXIF.Rows)
	} else {
		for _, line := range v.EXIF.Empty {
			fmt.Fprintf(&b, "_%s_\n\n", line)
		}
	}

	if loc := v.Location; loc != nil {
		fmt.Fprintf(&b, "## %s\n\n", loc.Title)
		table(loc.Rows)
		fmt.Fprintf(&b, "[%s](%s)\n\n", MapLinkLabel, loc.MapURL)
	}

	fmt.Fprintf(&b, "> %s\n", v.Summary)

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON writes the view together with the decoded metadata
func RenderJSON(w io.Writer, v *View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*View
		Metadata metadata.AnalysisResult `json:"metadata"`
	}{v, v.Result})
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// Variables exposes a view to output templates
func Variables(v *View) templates.Variables {
	r := v.Result
	vars := templates.Variables{
		FileName:   r.FileName,
		Stem:       strings.TrimSuffix(r.FileName, filepath.Ext(r.FileName)),
		Format:     r.Format,
		Dimensions: fmt.Sprintf("%d x %d", r.Dimensions.Width, r.Dimensions.Height),
		PreviewURL: v.PreviewURL,
		Summary:    v.Summary,
	}
	for _, row := range v.Basic.Rows {
		if row.Label == "Size" {
			vars.Size = row.Value
		}
	}
	for _, row := range v.EXIF.Rows {
		switch row.Label {
		case "Camera":
			vars.Camera = row.Value
		case "Date taken":
			vars.DateTaken = row.Value
		case "Orientation":
			vars.Orientation = row.Value
		case "Software":
			vars.Software = row.Value
		}
	}
	if loc := v.Location; loc != nil {
		vars.Latitude = formatNumber(loc.Latitude)
		vars.Longitude = formatNumber(loc.Longitude)
		vars.Coordinates = loc.Coordinates
		vars.MapURL = loc.MapURL
		for _, row := range loc.Rows {
			switch row.Label {
			case "Altitude":
				vars.Altitude = row.Value
			case "Address":
				vars.Address = row.Value
			}
		}
	}
	return vars
}
