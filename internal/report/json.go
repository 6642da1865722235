package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/raffis/stackpipe/internal/pipeline"
)

type jsonResult struct {
	Name        string               `json:"name"`
	Status      status               `json:"status"`
	Path        pipeline.Path        `json:"path"`
	StartedAt   time.Time            `json:"startedAt"`
	EndedAt     time.Time            `json:"endedAt"`
	Duration    string               `json:"duration"`
	BuiltImage  *pipeline.ImageRef   `json:"builtImage,omitempty"`
	TestResult  *pipeline.TestResult `json:"testResult,omitempty"`
	AppliedTags []string             `json:"appliedTags"`
	Error       string               `json:"error,omitempty"`
}

func JSON(w io.Writer, results []pipeline.Result) error {
	out := make([]jsonResult, 0, len(results))
	for _, result := range results {
		errMsg, _, duration := stringify(result)
		out = append(out, jsonResult{
			Name:        result.Name,
			Status:      resultStatus(result),
			Path:        result.Path,
			StartedAt:   result.StartedAt,
			EndedAt:     result.EndedAt,
			Duration:    duration,
			BuiltImage:  result.Context.BuiltImage,
			TestResult:  result.Context.TestResult,
			AppliedTags: result.Context.AppliedTags,
			Error:       errMsg,
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
