package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/sethvargo/go-retry"

	"github.com/raffis/stackpipe/internal/pipeline"
)

var (
	ErrServiceNotReady = errors.New("service not ready")
	ErrServiceExited   = errors.New("service exited")
	ErrNoHealthcheck   = errors.New("service has no healthcheck")
)

const (
	defaultWaitTimeout      = 60 * time.Second
	defaultWaitPollInterval = 2 * time.Second
)

// WaitForServices polls until every listed service reached the wait status or the
// timeout expired. Services which exited or define no healthcheck fail immediately.
func (s *Service) WaitForServices(ctx context.Context, project string, wait pipeline.WaitSpec) error {
	if len(wait.Services) == 0 {
		return nil
	}

	timeout := wait.Timeout
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}

	interval := wait.PollInterval
	if interval <= 0 {
		interval = defaultWaitPollInterval
	}

	status := wait.Status
	if status == "" {
		status = pipeline.WaitStatusRunning
	}

	logger := s.logger.WithValues("project", project, "status", status)
	logger.Info("wait for services", "services", wait.Services, "timeout", timeout)

	backoff := retry.WithMaxDuration(timeout, retry.NewConstant(interval))
	var attempts int
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		pending, err := s.pendingServices(ctx, project, wait.Services, status)
		if err != nil {
			return err
		}

		if len(pending) > 0 {
			logger.V(1).Info("services not ready yet", "pending", pending, "attempt", attempts)
			return retry.RetryableError(fmt.Errorf("%w: %s", ErrServiceNotReady, strings.Join(pending, ", ")))
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("waiting for services to become %s in project `%s` failed after %d attempts: %w", status, project, attempts, err)
	}

	logger.V(1).Info("services ready", "services", wait.Services, "attempts", attempts)
	return nil
}

func (s *Service) pendingServices(ctx context.Context, project string, services []string, status pipeline.WaitStatus) ([]string, error) {
	containers, err := s.containers(ctx, project)
	if err != nil {
		return nil, retry.RetryableError(err)
	}

	byService := make(map[string][]container.Summary)
	for _, c := range containers {
		service := c.Labels[serviceLabel]
		byService[service] = append(byService[service], c)
	}

	var pending []string
	for _, service := range services {
		replicas := byService[service]
		if len(replicas) == 0 {
			pending = append(pending, service)
			continue
		}

		for _, c := range replicas {
			ready, err := s.ready(ctx, service, c, status)
			if err != nil {
				return nil, err
			}

			if !ready {
				pending = append(pending, service)
				break
			}
		}
	}

	return pending, nil
}

func (s *Service) ready(ctx context.Context, service string, c container.Summary, status pipeline.WaitStatus) (bool, error) {
	switch string(c.State) {
	case "exited", "dead":
		return false, fmt.Errorf("%w: `%s` is %s (%s)", ErrServiceExited, service, c.State, c.Status)
	case "running":
	default:
		return false, nil
	}

	if status != pipeline.WaitStatusHealthy {
		return true, nil
	}

	inspect, err := s.client.ContainerInspect(ctx, c.ID)
	if err != nil {
		return false, retry.RetryableError(fmt.Errorf("failed to inspect container `%s`: %w", c.ID, err))
	}

	if inspect.ContainerJSONBase == nil || inspect.State == nil || inspect.State.Health == nil {
		return false, fmt.Errorf("%w: `%s`", ErrNoHealthcheck, service)
	}

	return string(inspect.State.Health.Status) == string(pipeline.WaitStatusHealthy), nil
}
