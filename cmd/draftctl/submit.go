package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/draftline-ai/orchestrator/internal/constants"
	"github.com/draftline-ai/orchestrator/internal/subject"
	"github.com/draftline-ai/orchestrator/internal/workflows"
)

var (
	submitMeta []string
	submitWait bool
)

var submitCmd = &cobra.Command{
	Use:   "submit {company|article} [name]",
	Short: "Start a workflow instance for a subject",
	Args:  cobra.ExactArgs(2),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringArrayVar(&submitMeta, "meta", nil, "metadata key=value (repeatable, e.g. --meta style=photo)")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "block until the instance finishes and print its result")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	kind, err := subject.ParseKind(args[0])
	if err != nil {
		return err
	}
	name := args[1]

	metadata := make(map[string]string, len(submitMeta))
	for _, kv := range submitMeta {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --meta %q, expected key=value", kv)
		}
		metadata[k] = v
	}

	c, err := dial()
	if err != nil {
		return err
	}
	defer c.Close()

	instanceID := instanceIDFor(kind, name)
	run, err := c.ExecuteWorkflow(context.Background(),
		client.StartWorkflowOptions{
			ID:        instanceID,
			TaskQueue: taskQueue,
		},
		workflowNameFor(kind),
		workflows.SubjectInput{
			InstanceID: instanceID,
			Kind:       string(kind),
			Name:       name,
			Metadata:   metadata,
		},
	)
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}

	cmd.Println("Instance started")
	cmd.Println("  workflow_id:", run.GetID())
	cmd.Println("  run_id:     ", run.GetRunID())

	if !submitWait {
		return nil
	}
	var res workflows.RunResult
	if err := run.Get(context.Background(), &res); err != nil {
		return fmt.Errorf("await result: %w", err)
	}
	return printJSON(cmd, res)
}

func instanceIDFor(kind subject.Kind, name string) string {
	return fmt.Sprintf("draftline-%s-%s-%s", kind, subject.Slugify(name), uuid.NewString()[:8])
}

func workflowNameFor(kind subject.Kind) string {
	if kind == subject.KindArticle {
		return constants.ArticleWorkflowName
	}
	return constants.CompanyProfileWorkflowName
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}
