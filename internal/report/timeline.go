package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/moby/term"

	"github.com/raffis/stackpipe/internal/pipeline"
	"github.com/raffis/stackpipe/internal/styles"
)

const (
	defaultTimelineWidth = 80
	minTimelineWidth     = 30
	timelineLabelWidth   = 20
)

// Timeline renders a gantt like chart of concurrently executed pipelines.
func Timeline(w io.Writer, results []pipeline.Result, opts ...Option) error {
	if len(results) == 0 {
		return nil
	}

	o := newOptions(opts)
	width := o.width
	if width == 0 {
		width = terminalWidth()
	}

	width -= timelineLabelWidth
	if width < minTimelineWidth {
		width = minTimelineWidth
	}

	start, end := results[0].StartedAt, results[0].EndedAt
	for _, result := range results {
		if result.StartedAt.Before(start) {
			start = result.StartedAt
		}

		if result.EndedAt.After(end) {
			end = result.EndedAt
		}
	}

	total := end.Sub(start)
	if total <= 0 {
		total = time.Millisecond
	}

	divider := styles.Faint.Render("│")

	var timeline strings.Builder
	timeline.WriteString(styles.Faint.Render(fmt.Sprintf("%-*s %s", timelineLabelWidth-2, "", total.Round(10*time.Millisecond))))
	timeline.WriteString("\n")

	for _, result := range results {
		startPos := position(result.StartedAt.Sub(start), total, width)
		endPos := position(result.EndedAt.Sub(start), total, width)
		if endPos > width {
			endPos = width
		}

		if endPos <= startPos {
			endPos = startPos + 1
		}

		bar := statusStyle(resultStatus(result)).Render(strings.Repeat("█", endPos-startPos))
		fmt.Fprintf(&timeline, "%-*s %s %s%s\n", timelineLabelWidth-2, truncate(result.Name, timelineLabelWidth-2), divider, strings.Repeat(" ", startPos), bar)
	}

	_, err := io.WriteString(colorWriter(w, o), timeline.String())
	return err
}

func position(offset, total time.Duration, width int) int {
	return int(int64(offset) * int64(width) / int64(total))
}

func statusStyle(s status) lipgloss.Style {
	switch s {
	case statusPassed:
		return styles.Passed
	case statusFailed:
		return styles.Failed
	case statusErrored:
		return styles.Errored
	default:
		return styles.Skipped
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n-1] + "…"
}

func terminalWidth() int {
	fd, isTerm := term.GetFdInfo(os.Stdout)
	if !isTerm {
		return defaultTimelineWidth
	}

	ws, err := term.GetWinsize(fd)
	if err != nil || ws.Width == 0 {
		return defaultTimelineWidth
	}

	return int(ws.Width)
}
