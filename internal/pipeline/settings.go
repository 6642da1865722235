package pipeline

import (
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	SettingStack              = "STACKPIPE_STACK"
	SettingLifecycle          = "STACKPIPE_LIFECYCLE"
	SettingComposeFiles       = "STACKPIPE_COMPOSE_FILES"
	SettingComposeProject     = "STACKPIPE_COMPOSE_PROJECT"
	SettingComposeEnvFiles    = "STACKPIPE_COMPOSE_ENV_FILES"
	SettingWaitServices       = "STACKPIPE_WAIT_SERVICES"
	SettingWaitTimeout        = "STACKPIPE_WAIT_TIMEOUT"
	SettingWaitPollInterval   = "STACKPIPE_WAIT_POLL_INTERVAL"
	SettingWaitStatus         = "STACKPIPE_WAIT_STATUS"
	SettingStateDir           = "STACKPIPE_STATE_DIR"
	composeFileEnv            = "COMPOSE_FILE"
	composeProjectNameEnv     = "COMPOSE_PROJECT_NAME"
	composeUpTaskNamePrefix   = "composeUp"
	composeDownTaskNamePrefix = "composeDown"
)

func ComposeUpTaskName(stackName string) string {
	return composeUpTaskNamePrefix + capitalize(stackName)
}

func ComposeDownTaskName(stackName string) string {
	return composeDownTaskNamePrefix + capitalize(stackName)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToUpper(r)) + s[size:]
}

// MethodLifecycleSettings describes a stack for a test framework extension which
// manages compose up/down per test method on its own.
// Only the first wait criteria is propagated, the healthy one wins if both are set.
func MethodLifecycleSettings(stack StackSpec) map[string]string {
	settings := map[string]string{
		SettingStack:          stack.Name,
		SettingLifecycle:      LifecycleMethod.String(),
		SettingComposeFiles:   strings.Join(stack.Files, string(os.PathListSeparator)),
		SettingComposeProject: stack.ProjectName,
		composeFileEnv:        strings.Join(stack.Files, string(os.PathListSeparator)),
		composeProjectNameEnv: stack.ProjectName,
	}

	if len(stack.EnvFiles) > 0 {
		settings[SettingComposeEnvFiles] = strings.Join(stack.EnvFiles, string(os.PathListSeparator))
	}

	if stack.StateDir != "" {
		settings[SettingStateDir] = stack.StateDir
	}

	if wait, ok := primaryWait(stack.Wait); ok {
		settings[SettingWaitServices] = strings.Join(wait.Services, ",")
		settings[SettingWaitTimeout] = wait.Timeout.String()
		settings[SettingWaitPollInterval] = wait.PollInterval.String()
		settings[SettingWaitStatus] = string(wait.Status)
	}

	return settings
}

func primaryWait(waits []WaitSpec) (WaitSpec, bool) {
	if len(waits) == 0 {
		return WaitSpec{}, false
	}

	sorted := make([]WaitSpec, len(waits))
	copy(sorted, waits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Status == WaitStatusHealthy && sorted[j].Status != WaitStatusHealthy
	})

	return sorted[0], true
}
