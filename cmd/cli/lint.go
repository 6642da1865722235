package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/raffis/stackpipe/internal/storage"
	"github.com/raffis/stackpipe/internal/styles"
	"github.com/raffis/stackpipe/pkg/apis/core/v1beta1"
)

var lintCmd = &cobra.Command{
	Use:   "lint [file]...",
	Short: "Validate pipeline files",
	Long:  `Lint decodes each pipeline file strictly, applies defaults and validates the result.`,
	Example: `  # Lint the pipeline of the current directory
  stackpipe lint

  # Lint several pipelines and print the result as json
  stackpipe lint api/stackpipe.yaml worker/stackpipe.yaml -o json`,
	RunE: lintRun,
}

type lintFlags struct {
	outputFormat OutputFormat
}

var lintArgs = newLintFlags()

func newLintFlags() lintFlags {
	return lintFlags{
		outputFormat: OutputHuman,
	}
}

func init() {
	lintCmd.Flags().VarP(&lintArgs.outputFormat, "output", "o", "Output format. Choice of: \"human\" or \"json\"")
	rootCmd.AddCommand(lintCmd)
}

type OutputFormat string

const (
	OutputHuman OutputFormat = "human"
	OutputJSON  OutputFormat = "json"
)

// String is used both by fmt.Print and by Cobra in help text
func (e *OutputFormat) String() string {
	return string(*e)
}

// Set must have pointer receiver so it doesn't change the value of a copy
func (e *OutputFormat) Set(v string) error {
	switch v {
	case "human", "json":
		*e = OutputFormat(v)
		return nil
	default:
		return fmt.Errorf(`must be one of "human", or "json"`)
	}
}

// Type is only used in help text
func (e *OutputFormat) Type() string {
	return "OutputFormat"
}

var errLintFailed = errors.New("lint failed")

func lintRun(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{storage.DefaultFile}
	}

	results := make(map[string]metav1.Status, len(args))
	hasError := false
	for _, path := range args {
		status := lintFile(path)
		results[path] = status
		hasError = hasError || status.Status != metav1.StatusSuccess
	}

	if lintArgs.outputFormat == OutputJSON {
		data, err := json.MarshalIndent(results, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to render results into JSON: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		printLint(cmd.OutOrStdout(), args, results)
	}

	if hasError {
		return errLintFailed
	}

	return nil
}

func printLint(w io.Writer, paths []string, results map[string]metav1.Status) {
	for _, path := range paths {
		status := results[path]
		if status.Status == metav1.StatusSuccess {
			fmt.Fprintf(w, "%s... %s\n", styles.Bold.Render(path), styles.Passed.Render("OK"))
			continue
		}

		fmt.Fprintf(w, "%s... %s\n", styles.Bold.Render(path), styles.Failed.Render("ERROR"))
		if status.Details == nil || len(status.Details.Causes) == 0 {
			fmt.Fprintf(w, "  %s\n", status.Message)
			continue
		}

		for _, cause := range status.Details.Causes {
			fmt.Fprintf(w, "  %s: %s\n", cause.Field, cause.Message)
		}
	}
}

func lintFile(path string) metav1.Status {
	b, err := os.ReadFile(path)
	if err != nil {
		return k8serrors.NewBadRequest(fmt.Sprintf("error reading file: %s", err)).ErrStatus
	}

	p, err := storage.Decode(b)
	if err != nil {
		return k8serrors.NewBadRequest(err.Error()).ErrStatus
	}

	return validationStatus(p, p.ValidateFields())
}

func validationStatus(p v1beta1.Pipeline, errs field.ErrorList) metav1.Status {
	if len(errs) == 0 {
		return metav1.Status{Status: metav1.StatusSuccess}
	}

	gk := schema.GroupKind{Group: v1beta1.Group, Kind: v1beta1.PipelineKind}
	return k8serrors.NewInvalid(gk, p.PipelineSpec.Name, errs).ErrStatus
}
