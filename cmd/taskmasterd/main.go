// Command taskmasterd is the supervisor daemon: it loads a config file,
// spawns the programs it declares, and serves the control socket.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cassian-io/taskmasterd/internal/config"
	"github.com/cassian-io/taskmasterd/internal/control"
	"github.com/cassian-io/taskmasterd/internal/jobset"
	"github.com/cassian-io/taskmasterd/internal/logger"
	"github.com/cassian-io/taskmasterd/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		configPath string
		nodaemon   bool
	)

	root := &cobra.Command{
		Use:   "taskmasterd",
		Short: "Process supervisor daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, nodaemon)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yml (default: search ./config.yml, ../config.yml, /etc/taskmasterd/config.yml)")
	root.Flags().BoolVarP(&nodaemon, "nodaemon", "n", false, "stay attached to the controlling terminal instead of daemonizing")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, nodaemon bool) error {
	stateDir, err := stateDirectory()
	if err != nil {
		return fmt.Errorf("taskmasterd: resolve state directory: %w", err)
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("taskmasterd: create state directory: %w", err)
	}

	if !nodaemon {
		daemonized, err := daemonize(stateDir)
		if err != nil {
			return fmt.Errorf("taskmasterd: daemonize: %w", err)
		}
		if daemonized {
			return nil // parent: child is running detached, nothing left to do
		}
	}

	log := logger.New(os.Stderr, slog.LevelInfo)
	slog.SetDefault(log)

	path, err := config.Resolve(configPath)
	if err != nil {
		log.Error("no config file found", "err", err)
		os.Exit(1)
	}
	programs, err := config.Load(path)
	if err != nil {
		log.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Warn("metrics registration failed, continuing without metrics", "err", err)
	}

	jobs := jobset.New()
	jobs.ConfigPath = path
	jobs.LoadInitial(programs)
	jobs.AutostartPass()

	sock, err := control.NewSocket(filepath.Join(stateDir, "taskmasterd.sock"))
	if err != nil {
		log.Error("failed to bind control socket", "err", err)
		os.Exit(1)
	}

	loop := control.NewLoop(jobs, sock, log)
	installSignalHandlers(loop, log)

	log.Info("taskmasterd started", "config", path, "jobs", len(programs))
	loop.Run()
	log.Info("taskmasterd exiting")
	return nil
}

func installSignalHandlers(loop *control.Loop, log *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				log.Info("received SIGHUP, scheduling config reload")
				loop.Reread.Store(true)
			default:
				log.Info("received termination signal", "signal", sig.String())
				loop.Term.Store(true)
			}
		}
	}()
}

func stateDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".taskmasterd"), nil
}
