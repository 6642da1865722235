// Package report renders the outcome of pipeline runs.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/raffis/stackpipe/internal/pipeline"
)

type Format string

var (
	FormatNone     Format = "none"
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTimeline Format = "timeline"
)

func Formats() []string {
	return []string{string(FormatNone), string(FormatTable), string(FormatJSON), string(FormatMarkdown), string(FormatTimeline)}
}

// Write renders results in the given format.
func Write(w io.Writer, format Format, results []pipeline.Result, opts ...Option) error {
	switch format {
	case FormatNone, "":
		return nil
	case FormatTable:
		return Table(w, results, opts...)
	case FormatJSON:
		return JSON(w, results)
	case FormatMarkdown:
		return Markdown(w, results)
	case FormatTimeline:
		return Timeline(w, results, opts...)
	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

type status string

var (
	statusPassed  status = "passed"
	statusFailed  status = "failed"
	statusErrored status = "errored"
	statusSkipped status = "skipped"
)

func resultStatus(result pipeline.Result) status {
	switch {
	case result.Error != nil:
		return statusErrored
	case result.Path == pipeline.PathSuccess:
		return statusPassed
	case result.Path == pipeline.PathFailure:
		return statusFailed
	default:
		return statusSkipped
	}
}

func stringify(result pipeline.Result) (errMsg string, tests string, duration string) {
	if result.Error != nil {
		errMsg = strings.ReplaceAll(result.Error.Error(), "\n", " ")
	}

	if tr := result.Context.TestResult; tr != nil {
		tests = fmt.Sprintf("%d/%d", tr.TotalCount-tr.FailureCount, tr.TotalCount)
	}

	duration = result.Duration().Round(10 * time.Millisecond).String()
	return errMsg, tests, duration
}
