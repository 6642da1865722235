package task

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/joho/godotenv"

	"github.com/raffis/stackpipe/internal/pipeline"
)

// Env assembles the environment of a task from dotenv files, static values and
// values set at runtime, later sources win.
type Env struct {
	mu       sync.Mutex
	Files    []string
	Static   map[string]string
	injected map[string]string
}

func (e *Env) SetEnv(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.injected == nil {
		e.injected = make(map[string]string)
	}

	e.injected[key] = value
}

// Environ returns the environment as sorted KEY=value pairs.
func (e *Env) Environ() ([]string, error) {
	vars := make(map[string]string)
	for _, file := range e.Files {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open env file: %w", err)
		}

		fileVars, err := parseVars(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse env file `%s`: %w", file, err)
		}

		maps.Copy(vars, fileVars)
	}

	maps.Copy(vars, e.Static)

	e.mu.Lock()
	maps.Copy(vars, e.injected)
	e.mu.Unlock()

	environ := make([]string, 0, len(vars))
	for _, key := range slices.Sorted(maps.Keys(vars)) {
		environ = append(environ, fmt.Sprintf("%s=%s", key, vars[key]))
	}

	return environ, nil
}

func parseVars(f io.Reader) (map[string]string, error) {
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	envMap, err := godotenv.UnmarshalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("dotenv failed: %w", err)
	}

	return envMap, nil
}

// outcomeFromExit derives the outcome of a task which does not report single tests.
func outcomeFromExit(exitCode int) pipeline.TaskOutcome {
	if exitCode != 0 {
		return pipeline.TaskOutcome{Failed: 1}
	}

	return pipeline.TaskOutcome{Executed: 1}
}
