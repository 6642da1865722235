package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/spf13/cobra"

	"github.com/raffis/stackpipe/internal/styles"
	"github.com/raffis/stackpipe/pkg/stackstate"
)

var stateCmd = &cobra.Command{
	Use:   "state <file>|<dir> [stack]",
	Short: "Print the state of a running stack",
	Long: `State prints the containers and published ports recorded for a stack. Either pass the
path to a state file or the state directory together with the stack name.`,
	Example: `  stackpipe state .stackpipe/integration-state.json
  stackpipe state .stackpipe integration -o json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runState,
}

type stateFlags struct {
	outputFormat OutputFormat
}

var stateArgs = stateFlags{
	outputFormat: OutputHuman,
}

func init() {
	stateCmd.Flags().VarP(&stateArgs.outputFormat, "output", "o", "Output format. Choice of: \"human\" or \"json\"")
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	path := args[0]
	if len(args) == 2 {
		path = stackstate.Path(args[0], args[1])
	}

	state, err := stackstate.Load(path)
	if err != nil {
		return err
	}

	if stateArgs.outputFormat == OutputJSON {
		b, err := json.MarshalIndent(state.StackState, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("SERVICE", "CONTAINER", "STATE", "PORT", "HOST PORT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}

			return styles.Cell
		})

	for _, name := range slices.Sorted(maps.Keys(state.Services)) {
		service := state.Services[name]
		if len(service.PublishedPorts) == 0 {
			t.Row(name, service.ContainerName, service.State, "", "")
			continue
		}

		for _, port := range service.PublishedPorts {
			t.Row(name, service.ContainerName, service.State, fmt.Sprintf("%d/%s", port.Container, port.Protocol), strconv.Itoa(port.Host))
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, %s)\n", styles.Bold.Render(state.StackName), state.ProjectName, state.Lifecycle, state.Timestamp)
	fmt.Fprintln(cmd.OutOrStdout(), t.String())
	return nil
}
