package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/term"

	"github.com/raffis/stackpipe/internal/compose"
	"github.com/raffis/stackpipe/internal/dockersetup"
	"github.com/raffis/stackpipe/internal/image"
	"github.com/raffis/stackpipe/internal/mask"
	"github.com/raffis/stackpipe/internal/pipeline"
	"github.com/raffis/stackpipe/internal/report"
	"github.com/raffis/stackpipe/internal/runtime"
	"github.com/raffis/stackpipe/internal/storage"
	"github.com/raffis/stackpipe/internal/xio"
	"github.com/raffis/stackpipe/pkg/apis/core/v1beta1"
)

var runCmd = &cobra.Command{
	Use:   "run [file|dir]...",
	Short: "Run pipelines",
	Long: `Run builds the image of each pipeline, tests it against its compose stacks and either
ships the image or collects diagnostics. Without arguments stackpipe.yaml of the current
directory is used. Independent pipelines run concurrently.`,
	Example: `  # Run the pipeline of the current directory
  stackpipe run

  # Run two pipelines with at most one at a time and print a summary
  stackpipe run api/stackpipe.yaml worker/stackpipe.yaml --max-concurrent 1 --report table`,
	RunE: runRun,
}

type runFlags struct {
	maxConcurrent int    `env:"MAX_CONCURRENT"`
	report        string `env:"REPORT"`
	reportOutput  string `env:"REPORT_OUTPUT"`
	pull          string `env:"PULL"`
	dockerQuiet   bool   `env:"DOCKER_QUIET"`
	composeBinary string `env:"COMPOSE_BINARY"`
	noPrefix      bool   `env:"NO_PREFIX"`
	dockerOptions dockersetup.Options
}

var runArgs = runFlags{}

func init() {
	runCmd.Flags().IntVarP(&runArgs.maxConcurrent, "max-concurrent", "", 0, "Maximum number of pipelines running at the same time, 0 means unlimited.")
	runCmd.Flags().StringVarP(&runArgs.report, "report", "r", string(report.FormatNone), fmt.Sprintf("Report summary of pipelines at the end of execution. One of [%s].", strings.Join(report.Formats(), ", ")))
	runCmd.Flags().StringVarP(&runArgs.reportOutput, "report-output", "", "/dev/stdout", "Destination for the report output.")
	runCmd.Flags().StringVarP(&runArgs.pull, "pull", "", string(runtime.PullImagePolicyMissing), "Pull policy for test images. One of [Always, Missing, Never].")
	runCmd.Flags().BoolVarP(&runArgs.dockerQuiet, "docker-quiet", "q", false, "Suppress the docker pull and build output.")
	runCmd.Flags().StringVarP(&runArgs.composeBinary, "compose-binary", "", "", "Use a standalone compose binary instead of the docker compose plugin.")
	runCmd.Flags().BoolVarP(&runArgs.noPrefix, "no-prefix", "", false, "Do not prefix output lines with the pipeline name.")
	runArgs.dockerOptions.BindFlags(runCmd.Flags())

	rootCmd.AddCommand(runCmd)
}

func loadPipelines(ctx context.Context, args []string) ([]v1beta1.Pipeline, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	store := storage.New(
		storage.WithFile(),
		storage.WithDefaultFile(cwd),
	)

	if len(args) == 0 {
		args = []string{""}
	}

	var pipelines []v1beta1.Pipeline
	names := make(map[string]string)
	for _, ref := range args {
		p, err := store.Lookup(ctx, ref)
		if err != nil {
			return nil, err
		}

		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid pipeline `%s`: %w", ref, err)
		}

		if other, ok := names[p.PipelineSpec.Name]; ok {
			return nil, fmt.Errorf("pipeline name `%s` of `%s` is already used by `%s`", p.PipelineSpec.Name, ref, other)
		}

		names[p.PipelineSpec.Name] = ref
		pipelines = append(pipelines, p)
	}

	return pipelines, nil
}

func parsePullPolicy(s string) (runtime.PullImagePolicy, error) {
	for _, policy := range []runtime.PullImagePolicy{runtime.PullImagePolicyAlways, runtime.PullImagePolicyMissing, runtime.PullImagePolicyNever} {
		if strings.EqualFold(s, string(policy)) {
			return policy, nil
		}
	}

	return "", fmt.Errorf("invalid pull policy `%s`", s)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if rootArgs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rootArgs.timeout)
		defer cancel()
	}

	pull, err := parsePullPolicy(runArgs.pull)
	if err != nil {
		return err
	}

	pipelines, err := loadPipelines(ctx, args)
	if err != nil {
		return err
	}

	runArgs.dockerOptions.SetDefaultOptions(cmd.Flags())
	client, err := runArgs.dockerOptions.Build()
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	auth, err := runArgs.dockerOptions.AuthStore()
	if err != nil {
		return err
	}

	stdout := xio.NewSafeWriter(cmd.OutOrStdout())
	stderr := xio.NewSafeWriter(cmd.ErrOrStderr())

	var dockerOutput io.Writer = stderr
	if runArgs.dockerQuiet {
		dockerOutput = io.Discard
	}

	images := image.NewService(client,
		image.WithLogger(logger.WithName("image")),
		image.WithOutput(dockerOutput),
		image.WithAuthStore(auth),
	)

	var executor compose.Executor = &compose.CLIExecutor{
		Binary: runArgs.composeBinary,
		Logger: logger.WithName("compose"),
	}

	stacks := compose.NewService(client,
		compose.WithLogger(logger.WithName("compose")),
		compose.WithExecutor(executor),
		compose.WithOutput(dockerOutput),
		compose.WithEnv(runArgs.dockerOptions.Environ()),
		compose.WithSnapshotTail(snapshotTail(pipelines)),
	)

	containers := runtime.NewDocker(client,
		runtime.WithLogger(logger.WithName("runtime")),
		runtime.WithHidePullOutput(runArgs.dockerQuiet),
		runtime.WithAuthStore(auth),
	)

	var outputs []*pipelineOutput
	specs := make([]pipeline.Spec, 0, len(pipelines))
	for _, p := range pipelines {
		secrets := mask.NewSecretStore(nil)
		secrets.AddSecrets(pipelineSecrets(p)...)
		output := newPipelineOutput(p.PipelineSpec.Name, stdout, stderr, !runArgs.noPrefix && len(pipelines) > 1, secrets)
		outputs = append(outputs, output)

		builder := &specBuilder{
			stacks:  stacks,
			runtime: containers,
			stdout:  output.stdout,
			stderr:  output.stderr,
			logger:  logger,
			pull:    pull,
		}

		spec, err := builder.Build(p)
		if err != nil {
			return fmt.Errorf("failed to build pipeline `%s`: %w", p.PipelineSpec.Name, err)
		}

		specs = append(specs, spec)
	}

	runner := pipeline.NewRunner(images, stacks, nil,
		pipeline.WithLogger(logger.WithName("pipeline")),
		pipeline.WithTracer(otel.GetTracerProvider().Tracer(otelName)),
		pipeline.WithMeter(otel.GetMeterProvider().Meter(otelName)),
	)

	results := runner.RunAll(ctx, specs, runArgs.maxConcurrent)
	for _, output := range outputs {
		output.Flush()
	}

	if err := writeReport(results); err != nil {
		return err
	}

	var errs []error
	for _, result := range results {
		switch {
		case result.Error != nil:
			errs = append(errs, fmt.Errorf("pipeline `%s` failed: %w", result.Name, result.Error))
		case result.Failed():
			errs = append(errs, fmt.Errorf("pipeline `%s` failed: %s", result.Name, result.Context.TestResult))
		}
	}

	return errors.Join(errs...)
}

func writeReport(results []pipeline.Result) error {
	format := report.Format(runArgs.report)
	if format == report.FormatNone {
		return nil
	}

	f, err := os.OpenFile(runArgs.reportOutput, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open report output: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	noColor := rootArgs.noColor || !term.IsTerminal(int(f.Fd()))
	return report.Write(f, format, results, report.WithNoColor(noColor))
}
