package compose

import (
	"context"

	"github.com/raffis/stackpipe/internal/pipeline"
)

type stackTask struct {
	name string
	run  func(ctx context.Context) error
}

func (t *stackTask) Name() string {
	return t.name
}

func (t *stackTask) Run(ctx context.Context) error {
	return t.run(ctx)
}

// Tasks returns the composeUp<Stack> and composeDown<Stack> tasks of a stack.
func (s *Service) Tasks(stack pipeline.StackSpec) []pipeline.Task {
	return []pipeline.Task{
		&stackTask{
			name: pipeline.ComposeUpTaskName(stack.Name),
			run: func(ctx context.Context) error {
				_, err := s.Up(ctx, stack)
				return err
			},
		},
		&stackTask{
			name: pipeline.ComposeDownTaskName(stack.Name),
			run: func(ctx context.Context) error {
				return s.Down(ctx, stack)
			},
		},
	}
}
