package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

// GlobalFlags holds persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "healthcore",
		Short: "Resource health monitoring and fault isolation daemon",
		Long: `Healthcore watches memory, CPU, load, and disk, supervises short-lived
child processes behind a security gate, and isolates failing dependencies
with circuit breakers.

Examples:
  healthcore serve --config=/etc/healthcore/config.toml
  healthcore status
  healthcore exec --command=df --arg=-h
  healthcore emergency --reason="manual intervention"`,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.APIUrl, "api-url", "", "daemon URL (default http://127.0.0.1:8745)")
	root.PersistentFlags().DurationVar(&flags.APITimeout, "api-timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		createServeCommand(flags),
		createStatusCommand(flags),
		createAlertsCommand(flags),
		createProcessesCommand(flags),
		createExecCommand(flags),
		createKillCommand(flags),
		createCleanupCommand(flags),
		createEmergencyCommand(flags),
		createVersionCommand(),
	)
	return root
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("healthcore", version)
		},
	}
}
