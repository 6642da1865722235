package main

import (
	"fmt"
	"io"

	"github.com/raffis/stackpipe/internal/mask"
	"github.com/raffis/stackpipe/internal/xio"
)

// pipelineOutput writes whole lines of a pipeline with its secrets masked.
// Lines are prefixed with the pipeline name if several pipelines run concurrently.
type pipelineOutput struct {
	stdout io.Writer
	stderr io.Writer
	lines  []*xio.LineWriter
}

func newPipelineOutput(name string, stdout, stderr io.Writer, prefix bool, secrets *mask.SecretStore) *pipelineOutput {
	var p []byte
	if prefix {
		p = []byte(fmt.Sprintf("%s | ", name))
	}

	out := xio.NewLineWriter(secrets.Writer(stdout), p)
	errOut := xio.NewLineWriter(secrets.Writer(stderr), p)

	return &pipelineOutput{
		stdout: out,
		stderr: errOut,
		lines:  []*xio.LineWriter{out, errOut},
	}
}

func (o *pipelineOutput) Flush() {
	for _, w := range o.lines {
		_ = w.Flush()
	}
}
