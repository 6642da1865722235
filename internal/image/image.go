package image

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-logr/logr"
	"github.com/moby/term"

	"github.com/raffis/stackpipe/internal/pipeline"
)

type Option func(*Service)

func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithOutput sets the writer daemon progress (build steps, push layers) is streamed to.
func WithOutput(w io.Writer) Option {
	return func(s *Service) {
		s.output = w
	}
}

func WithAuthStore(store AuthStore) Option {
	return func(s *Service) {
		s.auth = store
	}
}

// Service implements pipeline.ImageService on top of a docker engine.
type Service struct {
	client Client
	logger logr.Logger
	output io.Writer
	auth   AuthStore
}

var _ pipeline.ImageService = &Service{}

func NewService(client Client, opts ...Option) *Service {
	s := &Service{
		client: client,
		logger: logr.Discard(),
		output: io.Discard,
		auth:   DefaultAuthStore(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// displayStream renders a daemon json message stream and fails on the first error message.
func (s *Service) displayStream(r io.Reader, aux func(jsonmessage.JSONMessage)) error {
	termFd, isTerm := term.GetFdInfo(s.output)
	return jsonmessage.DisplayJSONMessagesStream(r, s.output, termFd, isTerm, aux)
}

type auxID struct {
	ID string `json:"ID"`
}

func decodeAuxID(msg jsonmessage.JSONMessage) (string, error) {
	if msg.Aux == nil {
		return "", nil
	}

	var aux auxID
	if err := json.Unmarshal(*msg.Aux, &aux); err != nil {
		return "", fmt.Errorf("failed to decode aux message: %w", err)
	}

	return aux.ID, nil
}
