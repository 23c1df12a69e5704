package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleEnableCmd(clientFn, outputFn),
		newScheduleDisableCmd(clientFn, outputFn),
	)

	return cmd
}

func scheduleRow(s ScheduleResponse) []string {
	trigger := s.CronExpr
	if trigger == "" && s.IntervalSec > 0 {
		trigger = fmt.Sprintf("every %ds", s.IntervalSec)
	}
	return []string{s.ID, s.TenantID, s.Pipeline, s.Name, trigger,
		strconv.FormatBool(s.Enabled), s.NextDueAt}
}

var scheduleHeaders = []string{"ID", "TENANT", "PIPELINE", "NAME", "TRIGGER", "ENABLED", "NEXT_DUE"}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules(tenantID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				rows[i] = scheduleRow(s)
			}

			out.Print(scheduleHeaders, rows, schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Filter by tenant ID")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var tenantID string
	var name string
	var cronExpr string
	var intervalSec int
	var timezone string
	var enabled bool
	var inputs []string

	cmd := &cobra.Command{
		Use:   "create PIPELINE",
		Short: "Create a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if cronExpr == "" && intervalSec <= 0 {
				return fmt.Errorf("either --cron or --interval is required")
			}

			req := CreateScheduleRequest{
				TenantID:    tenantID,
				Pipeline:    args[0],
				Name:        name,
				CronExpr:    cronExpr,
				IntervalSec: intervalSec,
				Timezone:    timezone,
				Enabled:     enabled,
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

			schedule, err := client.CreateSchedule(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Schedule name (required)")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Interval in seconds")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Timezone (default UTC)")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Enable immediately")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Run input values as KEY=VALUE (repeatable)")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetSchedule(args[0])
			if err != nil {
				return err
			}

			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var cronExpr string
	var intervalSec int
	var timezone string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateScheduleRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("cron") {
				req.CronExpr = &cronExpr
			}
			if cmd.Flags().Changed("interval") {
				req.IntervalSec = &intervalSec
			}
			if cmd.Flags().Changed("timezone") {
				req.Timezone = &timezone
			}

			schedule, err := client.UpdateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule updated: %s", schedule.ID))
			out.Print(scheduleHeaders, [][]string{scheduleRow(*schedule)}, schedule)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Interval in seconds")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Timezone")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteSchedule(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}

func newScheduleEnableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Enable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.EnableSchedule(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule enabled: %s", schedule.ID))
			return nil
		},
	}
}

func newScheduleDisableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.DisableSchedule(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule disabled: %s", schedule.ID))
			return nil
		},
	}
}
