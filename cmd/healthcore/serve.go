package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eekfonky/healthcore"
	"github.com/eekfonky/healthcore/internal/logger"
)

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	APIListen     string
	MetricsListen string
	Daemonize     bool
	PIDFile       string
	LogFile       string
}

func createServeCommand(flags *GlobalFlags) *cobra.Command {
	sf := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring daemon",
		Long: `Start monitoring memory, CPU, load, and disk, expose the operator API
and the metrics listener, and supervise child processes until SIGINT or
SIGTERM.

Examples:
  healthcore serve
  healthcore serve --config=/etc/healthcore/config.toml
  healthcore serve --daemonize --pidfile=/var/run/healthcore.pid --logfile=/var/log/healthcore.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags, sf)
		},
	}
	cmd.Flags().StringVar(&sf.APIListen, "api-listen", "", "operator API listen address (overrides config)")
	cmd.Flags().StringVar(&sf.MetricsListen, "metrics-listen", "", "metrics listen address (overrides config)")
	cmd.Flags().BoolVar(&sf.Daemonize, "daemonize", false, "detach and run in the background")
	cmd.Flags().StringVar(&sf.PIDFile, "pidfile", "", "write the daemon PID to this file")
	cmd.Flags().StringVar(&sf.LogFile, "logfile", "", "daemon log file (with --daemonize)")
	return cmd
}

func runServe(flags *GlobalFlags, sf *ServeFlags) error {
	if sf.Daemonize && os.Getppid() != 1 {
		if err := daemonize(sf.PIDFile, sf.LogFile); err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
		return nil
	}

	fc, err := healthcore.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if sf.LogFile != "" && fc.Log.File == "" {
		fc.Log.File = sf.LogFile
	}
	if sf.APIListen != "" {
		fc.Server.APIListen = sf.APIListen
	}
	if sf.MetricsListen != "" {
		fc.Server.MetricsListen = sf.MetricsListen
	}

	log := logger.Setup(fc.Log)
	if err := healthcore.RegisterMetricsDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	core, err := healthcore.New(fc)
	if err != nil {
		return err
	}

	if sf.PIDFile != "" {
		if err := writePIDFile(sf.PIDFile); err != nil {
			return err
		}
		defer func() { _ = os.Remove(sf.PIDFile) }()
	}

	core.Start()
	api := core.NewAPIServer(fc.Server.APIListen, "")
	ops := core.NewOpsServer()
	ops.Start(fc.Server.MetricsListen)
	log.Info("healthcore serving",
		"api", fc.Server.APIListen, "metrics", fc.Server.MetricsListen, "version", version)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("shutting down", "signal", s.String())

	_ = healthcore.ShutdownHTTP(api, 5*time.Second)
	_ = ops.Shutdown(5 * time.Second)
	core.Stop()
	return nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
