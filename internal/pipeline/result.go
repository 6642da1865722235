package pipeline

import (
	"fmt"
)

// TestResult is the immutable outcome of one test task execution.
// Executed counts tests which ran and passed, failures are counted separately.
type TestResult struct {
	Success      bool `json:"success"`
	Executed     int  `json:"executed"`
	UpToDate     int  `json:"upToDate"`
	Skipped      int  `json:"skipped"`
	FailureCount int  `json:"failureCount"`
	TotalCount   int  `json:"totalCount"`
}

func NewSuccessResult(executed, upToDate, skipped int) TestResult {
	return TestResult{
		Success:    true,
		Executed:   executed,
		UpToDate:   upToDate,
		Skipped:    skipped,
		TotalCount: executed + upToDate + skipped,
	}
}

func NewFailureResult(executed, upToDate, skipped, failures int) TestResult {
	return TestResult{
		Success:      false,
		Executed:     executed,
		UpToDate:     upToDate,
		Skipped:      skipped,
		FailureCount: failures,
		TotalCount:   executed + upToDate + skipped + failures,
	}
}

// newExecutionErrorResult encodes a test task which did not finish normally.
// Whatever the task reported is kept, the failure count is forced to one.
func newExecutionErrorResult(outcome TaskOutcome) TestResult {
	total := outcome.Total()
	if total == 0 {
		total = 1
	}

	return TestResult{
		Success:      false,
		Executed:     outcome.Executed,
		UpToDate:     outcome.UpToDate,
		Skipped:      outcome.Skipped,
		FailureCount: 1,
		TotalCount:   total,
	}
}

func (r TestResult) String() string {
	status := "passed"
	if !r.Success {
		status = "failed"
	}

	return fmt.Sprintf("%s (total=%d executed=%d failed=%d skipped=%d up-to-date=%d)",
		status, r.TotalCount, r.Executed, r.FailureCount, r.Skipped, r.UpToDate)
}
