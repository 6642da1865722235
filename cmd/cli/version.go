package main

import (
	"fmt"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var versionCmd = &cobra.Command{
	Use:  "version",
	RunE: runVersion,
}

type versionFlags struct {
	json bool `env:"JSON"`
}

var versionArgs = versionFlags{}

func init() {
	versionCmd.Flags().BoolVarP(&versionArgs.json, "json", "", !term.IsTerminal(int(os.Stdout.Fd())), "")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	if versionArgs.json {
		fmt.Fprintf(cmd.OutOrStdout(), `{"version":"%s","sha":"%s","date":"%s"}`+"\n", version, commit, date)
		return nil
	}

	bold := lipgloss.NewStyle().Bold(true)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n\n%s\t%s\n%s\t%s\n%s\t%s\n",
		bold.Render("STACKPIPE"),
		"Build, test against compose stacks and ship container images",
		bold.Render("Version:"),
		version,
		bold.Render("Commit SHA:"),
		commit,
		bold.Render("Build date:"),
		date,
	)

	return nil
}
