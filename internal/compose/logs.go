package compose

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/raffis/stackpipe/internal/pipeline"
	"github.com/raffis/stackpipe/internal/xio"
)

var ErrNoLogs = errors.New("no logs available")

// logSnapshot holds the log lines of a project keyed by service name.
type logSnapshot map[string][]string

// CaptureLogs returns the prefixed logs of a project. Once the project was torn down
// the snapshot taken during Down is used instead.
func (s *Service) CaptureLogs(ctx context.Context, project string, config pipeline.LogsConfig) (string, error) {
	containers, err := s.containers(ctx, project)
	if err != nil {
		s.logger.V(1).Info("failed to list project containers, fall back to snapshot", "project", project, "err", err.Error())
	}

	var snapshot logSnapshot
	if len(containers) > 0 {
		snapshot, err = s.readLogs(ctx, containers, strconv.Itoa(config.Tail))
		if err != nil {
			return "", err
		}
	} else {
		s.mu.Lock()
		cached, ok := s.snapshots[project]
		s.mu.Unlock()

		if !ok {
			return "", fmt.Errorf("%w for project `%s`", ErrNoLogs, project)
		}

		snapshot = cached
	}

	return renderLogs(snapshot, config)
}

func (s *Service) snapshotLogs(ctx context.Context, project string) (logSnapshot, error) {
	containers, err := s.containers(ctx, project)
	if err != nil {
		return nil, err
	}

	tail := s.snapshotTail
	if tail < 1 {
		tail = pipeline.DefaultLogTail
	}

	return s.readLogs(ctx, containers, strconv.Itoa(tail))
}

func (s *Service) readLogs(ctx context.Context, containers []container.Summary, tail string) (logSnapshot, error) {
	snapshot := make(logSnapshot)
	for _, c := range containers {
		service := c.Labels[serviceLabel]
		if service == "" {
			service = containerName(c)
		}

		lines, err := s.containerLogs(ctx, c.ID, tail)
		if err != nil {
			return nil, err
		}

		snapshot[service] = append(snapshot[service], lines...)
	}

	return snapshot, nil
}

func (s *Service) containerLogs(ctx context.Context, containerID, tail string) ([]string, error) {
	tty := false
	if inspect, err := s.client.ContainerInspect(ctx, containerID); err == nil && inspect.Config != nil {
		tty = inspect.Config.Tty
	}

	rc, err := s.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read logs of container `%s`: %w", containerID, err)
	}

	defer func() {
		_ = rc.Close()
	}()

	var buf bytes.Buffer
	if tty {
		_, err = io.Copy(&buf, rc)
	} else {
		_, err = stdcopy.StdCopy(&buf, &buf, rc)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to demux logs of container `%s`: %w", containerID, err)
	}

	var lines []string
	scanner := bufio.NewScanner(&buf)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines, scanner.Err()
}

func renderLogs(snapshot logSnapshot, config pipeline.LogsConfig) (string, error) {
	services := make([]string, 0, len(snapshot))
	for service := range snapshot {
		if len(config.Services) > 0 && !slices.Contains(config.Services, service) {
			continue
		}

		services = append(services, service)
	}

	sort.Strings(services)

	var out bytes.Buffer
	for _, service := range services {
		lines := snapshot[service]
		if config.Tail > 0 && len(lines) > config.Tail {
			lines = lines[len(lines)-config.Tail:]
		}

		w := xio.NewLineWriter(&out, []byte(service+" | "))
		for _, line := range lines {
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return "", err
			}
		}

		if err := w.Flush(); err != nil {
			return "", err
		}
	}

	return out.String(), nil
}
