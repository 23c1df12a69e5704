package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewPipelineCmd создаёт группу команд для просмотра топологий.
func NewPipelineCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Inspect pipeline topologies",
	}

	cmd.AddCommand(
		newPipelineListCmd(clientFn, outputFn),
		newPipelineShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newPipelineListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			pipelines, err := client.ListPipelines()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "STAGES", "DECISION_STAGE", "MAX_ROUTE_BACKS"}
			rows := make([][]string, len(pipelines))
			for i, p := range pipelines {
				rows[i] = []string{p.Name, strconv.Itoa(len(p.Stages)),
					p.DecisionStage, strconv.Itoa(p.MaxRouteBacks)}
			}

			out.Print(headers, rows, pipelines)
			return nil
		},
	}
}

func newPipelineShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show pipeline topology",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.GetPipeline(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STAGE", "ESTIMATED_COST", "TIMEOUT_SEC"}
			rows := make([][]string, len(p.Stages))
			for i, s := range p.Stages {
				rows[i] = []string{s.Name, fmt.Sprintf("%.1f", s.EstimatedCost),
					strconv.Itoa(s.TimeoutSec)}
			}

			out.Print(headers, rows, p)

			if p.DecisionStage != "" {
				out.Success(fmt.Sprintf("Decision stage: %s, max route-backs: %d",
					p.DecisionStage, p.MaxRouteBacks))
				for dim, target := range p.RouteTargets {
					out.Success(fmt.Sprintf("  %s -> %s", dim, target))
				}
			}
			return nil
		},
	}
}
