package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"wikisync/internal/config"
	"wikisync/internal/job"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := reportIssues(cmd, config.Validate(a.cfg)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			return nil
		},
	}
}

// reportIssues prints every issue and fails when any is an error.
func reportIssues(cmd *cobra.Command, issues []config.Issue) error {
	for _, iss := range issues {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errors.New("configuration is invalid")
	}
	return nil
}

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the sync jobs",
		Args:  cobra.NoArgs,
		// Listing needs no configuration.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range job.Specs() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %-18s %s\n", s.Name, s.Table.Name, s.Policy())
			}
			return nil
		},
	}
}
