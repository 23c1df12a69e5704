package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
		newRunDecisionsCmd(clientFn, outputFn),
		newRunCostsCmd(clientFn, outputFn),
		newRunWatchCmd(outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var tenantID string
	var pipelineName string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				TenantID: tenantID,
				Pipeline: pipelineName,
				Status:   status,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "TENANT", "PIPELINE", "STATUS", "STAGE", "ROUTE_BACKS", "CREATED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.TenantID, r.Pipeline, r.Status, r.CurrentStage,
					strconv.Itoa(r.RouteBackCount), r.CreatedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Filter by tenant ID")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "Filter by pipeline name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, AWAITING_ROUTE_BACK, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var tenantID string
	var inputs []string
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "start PIPELINE",
		Short: "Start a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}

			req := CreateRunRequest{
				TenantID:       tenantID,
				Pipeline:       args[0],
				IdempotencyKey: idempotencyKey,
			}

			if len(inputs) > 0 {
				req.Input = make(map[string]any)
				for _, kv := range inputs {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
					}
					req.Input[parts[0]] = parts[1]
				}
			}

			run, err := client.CreateRun(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s", run.ID))
			out.Print(
				[]string{"ID", "TENANT", "PIPELINE", "STATUS", "CREATED"},
				[][]string{{run.ID, run.TenantID, run.Pipeline, run.Status, run.CreatedAt}},
				run,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key to deduplicate starts")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "TENANT", "PIPELINE", "STATUS", "STAGE", "ROUTE_BACKS", "ERROR_KIND", "ERROR"},
				[][]string{{run.ID, run.TenantID, run.Pipeline, run.Status, run.CurrentStage,
					strconv.Itoa(run.RouteBackCount), run.ErrorKind, run.Error}},
				run,
			)
			return nil
		},
	}
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Request cancellation of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.CancelRun(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancellation requested: %s", run.ID))
			return nil
		},
	}
}

func newRunDecisionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "decisions RUN_ID",
		Short: "List route-back decisions of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			decisions, err := client.ListDecisions(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ITERATION", "TARGET", "FORCED", "SCORES", "DECIDED"}
			rows := make([][]string, len(decisions))
			for i, d := range decisions {
				target := d.TargetStage
				if target == "" {
					target = "(continue)"
				}
				rows[i] = []string{strconv.Itoa(d.Iteration), target,
					strconv.FormatBool(d.Forced), formatScores(d.Scores), d.DecidedAt}
			}

			out.Print(headers, rows, decisions)
			return nil
		},
	}
}

func newRunCostsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "costs RUN_ID",
		Short: "List recorded costs of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			costs, err := client.ListCosts(args[0])
			if err != nil {
				return err
			}

			var total float64
			headers := []string{"STAGE", "COST_UNITS", "RECORDED"}
			rows := make([][]string, len(costs))
			for i, c := range costs {
				total += c.CostUnits
				rows[i] = []string{c.Stage, fmt.Sprintf("%.2f", c.CostUnits), c.RecordedAt}
			}

			out.Print(headers, rows, costs)
			out.Success(fmt.Sprintf("Total: %.2f units", total))
			return nil
		},
	}
}

func newRunWatchCmd(outputFn func() *Output) *cobra.Command {
	var engineURL string

	cmd := &cobra.Command{
		Use:   "watch RUN_ID",
		Short: "Stream run progress events (SSE)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			return StreamRun(cmd.Context(), engineURL, args[0], func(ev StreamEvent) error {
				out.Success(fmt.Sprintf("[%s] %s", ev.Kind, string(ev.Data)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&engineURL, "engine-url", "http://localhost:8083", "Engine service URL (hosts the SSE stream)")

	return cmd
}

// formatScores форматирует оценки для табличного вывода.
func formatScores(scores map[string]float64) string {
	if len(scores) == 0 {
		return ""
	}
	parts := make([]string, 0, len(scores))
	for dim, v := range scores {
		parts = append(parts, fmt.Sprintf("%s=%.2f", dim, v))
	}
	return strings.Join(parts, " ")
}
