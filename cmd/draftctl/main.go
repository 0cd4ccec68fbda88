// draftctl is the operator CLI for the content orchestrator: submit and
// inspect workflow instances, tail their progress streams, and manage
// refresh schedules.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/draftline-ai/orchestrator/internal/config"
)

var (
	temporalHost string
	opsAddr      string
	taskQueue    string
)

var rootCmd = &cobra.Command{
	Use:           "draftctl",
	Short:         "Operate the content orchestrator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&temporalHost, "temporal",
		config.GetEnvOrDefault("TEMPORAL_HOST", "localhost:7233"),
		"Temporal frontend host:port")
	rootCmd.PersistentFlags().StringVar(&opsAddr, "ops",
		config.GetEnvOrDefault("DRAFTLINE_OPS_ADDR", "localhost:8081"),
		"worker ops (health/stream) host:port")
	rootCmd.PersistentFlags().StringVar(&taskQueue, "queue",
		config.GetEnvOrDefault("TASK_QUEUE", "draftline-queue"),
		"worker task queue")
}

func dial() (client.Client, error) {
	c, err := client.Dial(client.Options{HostPort: temporalHost})
	if err != nil {
		return nil, fmt.Errorf("connect to Temporal at %s: %w", temporalHost, err)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
