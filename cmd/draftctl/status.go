package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	enumspb "go.temporal.io/api/enums/v1"

	"github.com/draftline-ai/orchestrator/internal/workflows"
)

var statusCmd = &cobra.Command{
	Use:   "status [instance-id]",
	Short: "Show the state of a workflow instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	instanceID := args[0]

	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()
	desc, err := c.DescribeWorkflowExecution(ctx, instanceID, "")
	if err != nil {
		return fmt.Errorf("describe %s: %w", instanceID, err)
	}

	info := desc.GetWorkflowExecutionInfo()
	wfStatus := info.GetStatus()
	cmd.Println("Instance:", instanceID)
	cmd.Println("  workflow:", info.GetType().GetName())
	cmd.Println("  status:  ", wfStatus.String())
	if start := info.GetStartTime(); start != nil {
		cmd.Println("  started: ", start.AsTime().Format("2006-01-02 15:04:05 MST"))
	}
	if closed := info.GetCloseTime(); closed != nil {
		cmd.Println("  closed:  ", closed.AsTime().Format("2006-01-02 15:04:05 MST"))
	}

	if wfStatus == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING {
		return nil
	}

	// Closed instances always carry a result payload: failed and cancelled
	// runs report their outcome in RunResult rather than a workflow error.
	var res workflows.RunResult
	if err := c.GetWorkflow(ctx, instanceID, "").Get(ctx, &res); err != nil {
		return fmt.Errorf("fetch result for %s: %w", instanceID, err)
	}
	return printJSON(cmd, res)
}
