package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/draftline-ai/orchestrator/internal/subject"
	"github.com/draftline-ai/orchestrator/internal/workflows"
)

var scheduleCron string

var scheduleCmd = &cobra.Command{
	Use:   "schedule {company|article} [name]",
	Short: "Create a recurring refresh schedule for a subject",
	Long: `Create a recurring refresh schedule for a subject.

Each firing starts a fresh workflow instance for the subject. Because the
subject slug is the durable identifier, refreshed runs update the same
persistence rows and knowledge record rather than creating duplicates.`,
	Args: cobra.ExactArgs(2),
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "0 6 * * *", "cron expression for refresh firings")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	kind, err := subject.ParseKind(args[0])
	if err != nil {
		return err
	}
	name := args[1]

	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	slug := subject.Slugify(name)
	scheduleID := fmt.Sprintf("refresh-%s-%s", kind, slug)
	handle, err := c.ScheduleClient().Create(context.Background(), client.ScheduleOptions{
		ID: scheduleID,
		Spec: client.ScheduleSpec{
			CronExpressions: []string{scheduleCron},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        fmt.Sprintf("draftline-%s-%s-%s", kind, slug, uuid.NewString()[:8]),
			Workflow:  workflowNameFor(kind),
			TaskQueue: taskQueue,
			Args: []interface{}{workflows.SubjectInput{
				Kind:        string(kind),
				Name:        name,
				RequestedBy: "schedule/" + scheduleID,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create schedule %s: %w", scheduleID, err)
	}

	cmd.Println("Schedule created")
	cmd.Println("  id:  ", handle.GetID())
	cmd.Println("  cron:", scheduleCron)
	return nil
}
