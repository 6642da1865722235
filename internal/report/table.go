package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/charmbracelet/colorprofile"

	"github.com/raffis/stackpipe/internal/pipeline"
	"github.com/raffis/stackpipe/internal/styles"
)

type Option func(*options)

type options struct {
	noColor bool
	width   int
}

// WithNoColor strips all ansi sequences from the rendered report.
func WithNoColor(noColor bool) Option {
	return func(o *options) {
		o.noColor = noColor
	}
}

// WithWidth overrides the detected terminal width.
func WithWidth(width int) Option {
	return func(o *options) {
		o.width = width
	}
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// colorWriter downsamples colors to what the writer supports.
func colorWriter(w io.Writer, o options) io.Writer {
	cw := colorprofile.NewWriter(w, os.Environ())
	if o.noColor {
		cw.Profile = colorprofile.NoTTY
	}

	return cw
}

func Table(w io.Writer, results []pipeline.Result, opts ...Option) error {
	o := newOptions(opts)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("#", "PIPELINE", "STATUS", "TESTS", "DURATION", "TAGS", "ERROR").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}

			return styles.Cell
		})

	for i, result := range results {
		errMsg, tests, duration := stringify(result)

		var tags []string
		for _, tag := range result.Context.AppliedTags {
			tags = append(tags, styles.TagLabel.Render(tag))
		}

		t.Row(
			fmt.Sprintf("%d", i),
			result.Name,
			renderStatus(resultStatus(result)),
			tests,
			duration,
			strings.Join(tags, ""),
			errMsg,
		)
	}

	_, err := fmt.Fprintln(colorWriter(w, o), t.String())
	return err
}

func renderStatus(s status) string {
	return statusStyle(s).Render(string(s))
}
