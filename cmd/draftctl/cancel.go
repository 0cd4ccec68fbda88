package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [instance-id]",
	Short: "Request cancellation of a running instance",
	Long: `Request cancellation of a running instance.

Cancellation is cooperative: the workflow finishes its current activity,
persists a terminal snapshot, and closes with status "cancelled".`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	instanceID := args[0]

	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.CancelWorkflow(context.Background(), instanceID, ""); err != nil {
		return fmt.Errorf("cancel %s: %w", instanceID, err)
	}
	cmd.Println("Cancellation requested for", instanceID)
	return nil
}
