package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/raffis/stackpipe/internal/pipeline"
)

func Markdown(w io.Writer, results []pipeline.Result) error {
	fmt.Fprintln(w, "| # | Pipeline | Status | Tests | Duration | Tags | Error |")
	fmt.Fprintln(w, "| --- | --- | --- | --- | --- | --- | --- |")

	for i, result := range results {
		errMsg, tests, duration := stringify(result)
		_, err := fmt.Fprintf(w, "| %d | %s | %s | %s | %s | %s | %s |\n",
			i,
			result.Name,
			resultStatus(result),
			tests,
			duration,
			strings.Join(result.Context.AppliedTags, ", "),
			strings.ReplaceAll(errMsg, "|", "\\|"),
		)

		if err != nil {
			return err
		}
	}

	return nil
}
