// Package stackstate gives test code access to the state of a stack started by
// stackpipe, most notably the host ports docker published for each service.
package stackstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/raffis/stackpipe/pkg/apis/core/v1beta1"
)

const (
	EnvStateDir = "STACKPIPE_STATE_DIR"
	EnvStack    = "STACKPIPE_STACK"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrPortNotFound    = errors.New("port not published")
)

// State is a loaded state file.
type State struct {
	v1beta1.StackState
}

// Path returns the location of the state file of a stack.
func Path(stateDir, stackName string) string {
	return filepath.Join(stateDir, fmt.Sprintf("%s-state.json", stackName))
}

// Load reads a state file while holding a shared lock on it.
func Load(path string) (*State, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock state file: %w", err)
	}

	defer func() {
		_ = lock.Unlock()
	}()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	state := &State{}
	if err := json.Unmarshal(b, &state.StackState); err != nil {
		return nil, fmt.Errorf("failed to decode state file `%s`: %w", path, err)
	}

	return state, nil
}

// FromEnv loads the state of the stack described by STACKPIPE_STATE_DIR and
// STACKPIPE_STACK, as exported to tests running with the method lifecycle.
func FromEnv() (*State, error) {
	dir, stack := os.Getenv(EnvStateDir), os.Getenv(EnvStack)
	if dir == "" || stack == "" {
		return nil, fmt.Errorf("%s and %s must be set", EnvStateDir, EnvStack)
	}

	return Load(Path(dir, stack))
}

// Service returns the state of a single service.
func (s *State) Service(name string) (v1beta1.ServiceState, error) {
	service, ok := s.Services[name]
	if !ok {
		return v1beta1.ServiceState{}, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}

	return service, nil
}

// HostPort resolves the host port a container port of a service is published on.
// The protocol defaults to tcp, a port may be given as `5432` or `5432/udp`.
func (s *State) HostPort(service string, containerPort string) (int, error) {
	svc, err := s.Service(service)
	if err != nil {
		return 0, err
	}

	port, protocol, _ := strings.Cut(containerPort, "/")
	if protocol == "" {
		protocol = "tcp"
	}

	for _, published := range svc.PublishedPorts {
		if fmt.Sprint(published.Container) == port && strings.EqualFold(published.Protocol, protocol) {
			return published.Host, nil
		}
	}

	return 0, fmt.Errorf("%w: %s %s", ErrPortNotFound, service, containerPort)
}

// Address returns host:port for a published container port, the host is
// localhost unless DOCKER_HOST points to a remote daemon.
func (s *State) Address(service string, containerPort string) (string, error) {
	port, err := s.HostPort(service, containerPort)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s:%d", dockerHost(), port), nil
}

func dockerHost() string {
	host := os.Getenv("DOCKER_HOST")
	if !strings.HasPrefix(host, "tcp://") {
		return "localhost"
	}

	host = strings.TrimPrefix(host, "tcp://")
	if h, _, ok := strings.Cut(host, ":"); ok {
		return h
	}

	return host
}
