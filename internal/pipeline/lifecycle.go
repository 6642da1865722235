package pipeline

import (
	"fmt"
	"strings"
)

type Lifecycle string

var (
	// LifecycleClass keeps one stack running for the whole test task.
	LifecycleClass Lifecycle = "class"
	// LifecycleMethod restarts the stack per test, driven by the test framework itself.
	LifecycleMethod Lifecycle = "method"
)

func (l Lifecycle) String() string {
	return string(l)
}

func ParseLifecycle(s string) (Lifecycle, error) {
	switch Lifecycle(strings.ToLower(s)) {
	case "", LifecycleClass:
		return LifecycleClass, nil
	case LifecycleMethod:
		return LifecycleMethod, nil
	default:
		return "", fmt.Errorf("unknown lifecycle `%s`, expected one of [class, method]", s)
	}
}

// ShouldDelegateCompose decides whether compose up/down is left to someone else.
// The method lifecycle always delegates, the explicit flag cannot turn that off.
func ShouldDelegateCompose(lifecycle Lifecycle, delegateStackManagement bool) bool {
	return lifecycle == LifecycleMethod || delegateStackManagement
}
