package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amoshaviv/flow-tester-sub001/internal/dispatch"
	"github.com/amoshaviv/flow-tester-sub001/internal/models"
	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

func newRunCommand(a *app) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect and update test runs",
	}

	var (
		status      string
		resultsURL  string
		screenshots []string
	)
	reportCmd := &cobra.Command{
		Use:   "report <run-slug>",
		Short: "Record an execution result for a test run",
		Long:  "Apply the same status transition an agent report would, recomputing the parent suite run.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs := service.NewRunService(
				repository.NewTestRepository(a.db),
				repository.NewTestSuiteRepository(a.db),
				repository.NewTestSuiteVersionRepository(a.db),
				repository.NewTestRunRepository(a.db),
				repository.NewTestSuiteRunRepository(a.db),
				dispatch.NewLogDispatcher(a.logger),
				nil,
				a.logger,
			)

			req := &service.ReportTestRunRequest{Status: models.RunStatus(status)}
			if cmd.Flags().Changed("results-url") {
				req.ResultsURL = &resultsURL
			}
			if cmd.Flags().Changed("screenshot") {
				req.Screenshots = screenshots
			}

			run, err := runs.ReportTestRun(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "test run %s is %s\n", run.Slug, run.Status)
			if run.TestSuiteRun != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "test suite run %s is %s\n", run.TestSuiteRun.Slug, run.TestSuiteRun.Status)
			}
			return nil
		},
	}
	reportCmd.Flags().StringVarP(&status, "status", "s", "", "New status (running, succeeded, failed)")
	reportCmd.Flags().StringVar(&resultsURL, "results-url", "", "Link to the execution results")
	reportCmd.Flags().StringSliceVar(&screenshots, "screenshot", nil, "Screenshot URL, repeatable")

	runCmd.AddCommand(reportCmd)
	return runCmd
}
