// MarketMind CLI — инструмент командной строки для управления
// pipelines, runs, schedules и бюджетами через HTTP API.
//
// Использование:
//
//	marketmind [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	pipeline  Просмотр pipelines
//	run       Управление runs
//	schedule  Управление schedules
//	budget    Просмотр бюджета тенанта
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/MarketMind/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "marketmind",
		Short:         "MarketMind CLI — marketing pipeline orchestration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewPipelineCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
		cli.NewBudgetCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
