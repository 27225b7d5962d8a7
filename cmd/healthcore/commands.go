package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/eekfonky/healthcore"
)

func client(flags *GlobalFlags) *APIClient {
	return NewAPIClient(flags.APIUrl, flags.APITimeout)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func createStatusCommand(flags *GlobalFlags) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the composed health report",
		RunE: func(cmd *cobra.Command, args []string) error {
			var st healthcore.HealthStatus
			if err := client(flags).GetJSON("/status", &st); err != nil {
				return err
			}
			if raw {
				return printJSON(st)
			}
			fmt.Printf("overall: %s (as of %s)\n", st.Overall, st.GeneratedAt.Format(time.RFC3339))
			names := make([]string, 0, len(st.Components))
			for name := range st.Components {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %-10s %s\n", name, st.Components[name])
			}
			keys := make([]string, 0, len(st.Metrics))
			for k := range st.Metrics {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %-24s %.2f\n", k, st.Metrics[k])
			}
			for _, r := range st.Recommendations {
				fmt.Println("  recommendation:", r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "json", false, "print raw JSON")
	return cmd
}

func createAlertsCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Show recent alerts, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var alerts []healthcore.Alert
			if err := client(flags).GetJSON("/alerts", &alerts); err != nil {
				return err
			}
			return printJSON(alerts)
		},
	}
}

func createProcessesCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "processes",
		Short: "List tracked child processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var recs []healthcore.ProcessRecord
			if err := client(flags).GetJSON("/processes", &recs); err != nil {
				return err
			}
			return printJSON(recs)
		},
	}
}

func createExecCommand(flags *GlobalFlags) *cobra.Command {
	var (
		command string
		cmdArgs []string
		timeout time.Duration
		workDir string
	)
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a command through the daemon's security gate",
		Long: `Run an allowlisted command as a supervised child of the daemon.
The command is subject to the security gate, the capacity limit, the
timeout, and the output cap.

Examples:
  healthcore exec --command=df --arg=-h
  healthcore exec --command=sleep --arg=2 --timeout=5s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"command":  command,
				"args":     cmdArgs,
				"timeout":  timeout,
				"work_dir": workDir,
			}
			var rec healthcore.ProcessRecord
			if err := client(flags).PostJSON("/processes/exec", body, &rec); err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
	cmd.Flags().StringVar(&command, "command", "", "command to run (required)")
	cmd.Flags().StringArrayVar(&cmdArgs, "arg", nil, "argument, repeatable")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "execution timeout (0 uses the daemon default)")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "working directory")
	if err := cmd.MarkFlagRequired("command"); err != nil {
		panic(err)
	}
	return cmd
}

func createKillCommand(flags *GlobalFlags) *cobra.Command {
	var (
		id     string
		all    bool
		signal string
	)
	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Signal a tracked child process (or all of them)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && id == "" {
				return fmt.Errorf("either --id or --all is required")
			}
			params := map[string]string{"signal": signal}
			if all {
				params["all"] = "1"
			} else {
				params["id"] = id
			}
			var out map[string]any
			if err := client(flags).PostJSON(queryPath("/processes/kill", params), nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "process ID from 'healthcore processes'")
	cmd.Flags().BoolVar(&all, "all", false, "signal every tracked child")
	cmd.Flags().StringVar(&signal, "signal", "SIGTERM", "signal name (SIGTERM, SIGKILL, ...)")
	return cmd
}

func createCleanupCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Sweep stale temp files, reap zombies, force a GC pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := client(flags).PostJSON("/cleanup", nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func createEmergencyCommand(flags *GlobalFlags) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "emergency",
		Short: "Trigger the guarded emergency response",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			path := queryPath("/emergency", map[string]string{"reason": reason})
			if err := client(flags).PostJSON(path, nil, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "operator request", "reason recorded with the response")
	return cmd
}
