// Package table renders reconciler views and live posts for the terminal.
package table

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/postboard/internal/model"
	"github.com/dyluth/postboard/internal/reconciler"
)

// OutputFormat selects how views and live posts are written.
type OutputFormat string

const (
	// OutputFormatDefault is a human-readable table or line per post
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON writes a view as one pretty-printed JSON document
	OutputFormatJSON OutputFormat = "json"

	// OutputFormatJSONL writes each live post as a line of JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates s against the formats in allowed.
func ParseOutputFormat(s string, allowed ...OutputFormat) (OutputFormat, error) {
	names := make([]string, len(allowed))
	for i, f := range allowed {
		if string(f) == s {
			return f, nil
		}
		names[i] = string(f)
	}
	return "", fmt.Errorf("unknown format %q (valid formats: %s)", s, strings.Join(names, ", "))
}

// Render writes v in format. OutputFormatJSONL is not a view format.
func Render(w io.Writer, v reconciler.View, format OutputFormat) error {
	switch format {
	case OutputFormatDefault:
		FormatTable(w, v)
		return nil
	case OutputFormatJSON:
		return FormatJSON(w, v)
	default:
		return fmt.Errorf("unsupported view format %q", format)
	}
}

const (
	titleWidth   = 24
	contentWidth = 32
	userWidth    = 16
)

// FormatTable writes one page of v as a table. The expanded record, when it
// is on the page, is followed by its full content.
// Returns the number of rows written.
func FormatTable(w io.Writer, v reconciler.View) int {
	fmt.Fprintf(w, "Posts Per User\n\n")

	if len(v.Records) == 0 {
		if v.Total == 0 {
			fmt.Fprintf(w, "No posts found\n")
		} else {
			fmt.Fprintf(w, "No posts on page %d\n", v.Page+1)
		}
		fmt.Fprintf(w, "\n%s\n", footer(v))
		return 0
	}

	fmt.Fprintf(w, "   %-6s %-24s %-32s %s\n", "ID", "TITLE", "CONTENT", "USER")
	fmt.Fprintf(w, "   %-6s %-24s %-32s %s\n",
		"------", strings.Repeat("-", titleWidth), strings.Repeat("-", contentWidth), strings.Repeat("-", userWidth))

	for _, r := range v.Records {
		expanded := v.Expanded != nil && *v.Expanded == r.ID
		marker := "▸"
		if expanded {
			marker = "▾"
		}

		fmt.Fprintf(w, "%s  %-6d %-24s %-32s %s\n",
			marker,
			r.ID,
			truncate(firstLine(r.Title), titleWidth),
			truncate(firstLine(r.Content), contentWidth),
			truncate(r.User, userWidth),
		)

		if expanded {
			fmt.Fprintf(w, "\n      Detailed Information\n")
			content := r.Content
			if strings.TrimSpace(content) == "" {
				content = "-"
			}
			for _, line := range strings.Split(content, "\n") {
				fmt.Fprintf(w, "      %s\n", line)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintf(w, "\n%s\n", footer(v))
	return len(v.Records)
}

// viewJSON is the machine-readable form of a View.
type viewJSON struct {
	Records   []model.JoinedRecord `json:"records"`
	Page      int                  `json:"page"`
	PageSize  int                  `json:"page_size"`
	PageCount int                  `json:"page_count"`
	Total     int                  `json:"total"`
	Expanded  *int32               `json:"expanded"`
}

// FormatJSON writes v as pretty-printed JSON.
func FormatJSON(w io.Writer, v reconciler.View) error {
	records := v.Records
	if records == nil {
		records = []model.JoinedRecord{}
	}
	data, err := json.MarshalIndent(viewJSON{
		Records:   records,
		Page:      v.Page,
		PageSize:  v.PageSize,
		PageCount: v.PageCount(),
		Total:     v.Total,
		Expanded:  v.Expanded,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal view to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// FormatEvent writes a live post as a single human-readable line.
func FormatEvent(w io.Writer, ev model.PostAdded) error {
	_, err := fmt.Fprintf(w, "📝 Post #%d added: %s - %s\n",
		ev.ID, truncate(firstLine(ev.Title), titleWidth), truncate(firstLine(ev.Content), contentWidth*2))
	return err
}

// FormatEventJSONL writes a live post as one line of JSON.
func FormatEventJSONL(w io.Writer, ev model.PostAdded) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal post to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSONL output: %w", err)
	}
	return nil
}

// footer summarises the page position, e.g. "Rows 6-10 of 12, page 2 of 3".
func footer(v reconciler.View) string {
	pages := v.PageCount()
	if len(v.Records) == 0 {
		return fmt.Sprintf("Rows 0 of %d, page %d of %d (%d per page)", v.Total, v.Page+1, max(pages, 1), v.PageSize)
	}
	first := v.FirstIndex() + 1
	last := v.FirstIndex() + len(v.Records)
	return fmt.Sprintf("Rows %d-%d of %d, page %d of %d (%d per page)", first, last, v.Total, v.Page+1, pages, v.PageSize)
}

// firstLine returns the first non-empty trimmed line of s, or "-".
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return "-"
}

// truncate shortens s to width runes, ending in "..." when cut.
func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
