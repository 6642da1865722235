package task

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/raffis/stackpipe/internal/pipeline"
)

// testEvent is a single line of `go test -json` output.
type testEvent struct {
	Action  string `json:"Action"`
	Package string `json:"Package"`
	Test    string `json:"Test"`
	Output  string `json:"Output"`
}

type packageResult struct {
	cached bool
	failed bool
	tests  map[string]string
}

// GoTestParser consumes `go test -json` output, forwards the plain test output to w
// and counts the outcome of every top level test.
type GoTestParser struct {
	mu       sync.Mutex
	w        io.Writer
	buf      bytes.Buffer
	packages map[string]*packageResult
	order    []string
}

func NewGoTestParser(w io.Writer) *GoTestParser {
	if w == nil {
		w = io.Discard
	}

	return &GoTestParser{
		w:        w,
		packages: make(map[string]*packageResult),
	}
}

func (p *GoTestParser) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(b)
	for {
		line, err := p.buf.ReadBytes('\n')
		if err != nil {
			p.buf.Write(line)
			break
		}

		if err := p.handle(line); err != nil {
			return len(b), err
		}
	}

	return len(b), nil
}

// Flush processes a trailing line without newline.
func (p *GoTestParser) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buf.Len() == 0 {
		return nil
	}

	line := p.buf.Bytes()
	p.buf.Reset()
	return p.handle(line)
}

func (p *GoTestParser) handle(line []byte) error {
	var event testEvent
	if err := json.Unmarshal(bytes.TrimSpace(line), &event); err != nil || event.Action == "" {
		// not a test event, for example compiler output on stderr redirected to stdout
		_, err := p.w.Write(line)
		return err
	}

	pkg := p.pkg(event.Package)
	switch event.Action {
	case "output":
		if event.Test == "" && strings.Contains(event.Output, "(cached)") {
			pkg.cached = true
		}

		_, err := io.WriteString(p.w, event.Output)
		return err
	case "pass", "fail", "skip":
		if event.Test == "" {
			if event.Action == "fail" {
				pkg.failed = true
			}

			return nil
		}

		if !strings.Contains(event.Test, "/") {
			pkg.tests[event.Test] = event.Action
		}
	}

	return nil
}

func (p *GoTestParser) pkg(name string) *packageResult {
	pkg, ok := p.packages[name]
	if !ok {
		pkg = &packageResult{tests: make(map[string]string)}
		p.packages[name] = pkg
		p.order = append(p.order, name)
	}

	return pkg
}

// Outcome counts passed tests of cached packages as up to date. A failed package
// without any failed test, for example a build failure, counts as one failure.
func (p *GoTestParser) Outcome() pipeline.TaskOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	var outcome pipeline.TaskOutcome
	for _, name := range p.order {
		pkg := p.packages[name]
		failedTests := 0

		for _, action := range pkg.tests {
			switch {
			case action == "fail":
				failedTests++
			case action == "skip":
				outcome.Skipped++
			case pkg.cached:
				outcome.UpToDate++
			default:
				outcome.Executed++
			}
		}

		outcome.Failed += failedTests
		if pkg.failed && failedTests == 0 {
			outcome.Failed++
		}
	}

	return outcome
}
