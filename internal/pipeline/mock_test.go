package pipeline

import (
	"context"
	"sync"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type mockTask struct {
	name    string
	run     func(ctx context.Context) error
	outcome *TaskOutcome
	env     map[string]string
}

func (t *mockTask) Name() string {
	return t.name
}

func (t *mockTask) Run(ctx context.Context) error {
	if t.run == nil {
		return nil
	}

	return t.run(ctx)
}

type mockReportingTask struct {
	mockTask
}

func (t *mockReportingTask) Outcome() TaskOutcome {
	return *t.outcome
}

func (t *mockReportingTask) SetEnv(key, value string) {
	if t.env == nil {
		t.env = make(map[string]string)
	}

	t.env[key] = value
}

type mockTasks struct {
	mu       sync.Mutex
	tasks    map[string]Task
	recorder *recorder
	lookups  []string
}

func newMockTasks(rec *recorder, tasks ...Task) *mockTasks {
	m := &mockTasks{
		tasks:    make(map[string]Task),
		recorder: rec,
	}

	for _, task := range tasks {
		m.tasks[task.Name()] = task
	}

	return m
}

func (m *mockTasks) FindByName(name string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, name)
	task, ok := m.tasks[name]
	return task, ok
}

func (m *mockTasks) Execute(ctx context.Context, task Task) error {
	m.recorder.add("execute:" + task.Name())
	return task.Run(ctx)
}

type mockImages struct {
	mu         sync.Mutex
	recorder   *recorder
	buildRef   ImageRef
	buildErr   error
	tagErr     error
	saveErr    error
	publishErr error
	tagged     [][]string
}

func (m *mockImages) BuildImage(ctx context.Context, build BuildContext) (ImageRef, error) {
	m.recorder.add("build")
	return m.buildRef, m.buildErr
}

func (m *mockImages) TagImage(ctx context.Context, source ImageRef, tags []string) error {
	m.recorder.add("tag")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagged = append(m.tagged, tags)
	return m.tagErr
}

func (m *mockImages) SaveImage(ctx context.Context, ref ImageRef, target SaveTarget) error {
	m.recorder.add("save")
	return m.saveErr
}

func (m *mockImages) PublishImage(ctx context.Context, ref ImageRef, target PublishTarget) error {
	m.recorder.add("publish")
	return m.publishErr
}

type mockStacks struct {
	recorder *recorder
	logs     string
	logsErr  error
	panics   bool
	project  string
	config   LogsConfig
}

func (m *mockStacks) Up(ctx context.Context, stack StackSpec) (StackState, error) {
	m.recorder.add("up")
	return StackState{}, nil
}

func (m *mockStacks) Down(ctx context.Context, stack StackSpec) error {
	m.recorder.add("down")
	return nil
}

func (m *mockStacks) WaitForServices(ctx context.Context, project string, wait WaitSpec) error {
	return nil
}

func (m *mockStacks) CaptureLogs(ctx context.Context, project string, logs LogsConfig) (string, error) {
	m.recorder.add("logs")
	if m.panics {
		panic("boom")
	}

	m.project = project
	m.config = logs
	return m.logs, m.logsErr
}
