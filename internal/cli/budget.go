package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBudgetCmd создаёт группу команд для просмотра бюджета.
func NewBudgetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect tenant budgets",
	}

	cmd.AddCommand(newBudgetShowCmd(clientFn, outputFn))

	return cmd
}

func newBudgetShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show TENANT_ID",
		Short: "Show tenant spend for the current billing period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			budget, err := client.GetBudget(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"TENANT", "SPEND", "PERIOD_START"},
				[][]string{{budget.TenantID, fmt.Sprintf("%.2f", budget.Spend), budget.PeriodStart}},
				budget,
			)
			return nil
		},
	}
}
