package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockwire/obsidian/config"
	"github.com/blockwire/obsidian/engine"
	"github.com/blockwire/obsidian/gameplay"
	"github.com/blockwire/obsidian/logging"
)

var cmd struct {
	ListenAddr     string
	MaxConnections int
	QueueDepth     uint32
	FramePoolSize  int
	IdleTimeout    string
	LogLevel       string
}

var rootCmd = &cobra.Command{
	Use:   "obsidiand",
	Short: "obsidiand serves the legacy Minecraft beta/alpha wire protocol",
	RunE: func(_ *cobra.Command, _ []string) error {
		return run()
	},
}

func init() {
	def := config.Default()
	flags := rootCmd.Flags()
	flags.StringVar(&cmd.ListenAddr, "listen", def.ListenAddr, "address to bind the listening socket")
	flags.IntVar(&cmd.MaxConnections, "max-connections", def.MaxConnections, "session table capacity")
	flags.Uint32Var(&cmd.QueueDepth, "queue-depth", def.QueueDepth, "io_uring submission/completion queue depth")
	flags.IntVar(&cmd.FramePoolSize, "frame-pool-size", def.FramePoolSize, "in-flight frame pool capacity")
	flags.StringVar(&cmd.IdleTimeout, "idle-timeout", def.IdleTimeout.String(), "close a session after this long with no recv activity, 0 to disable")
	flags.StringVar(&cmd.LogLevel, "log-level", "info", "trace, debug, info, warn, error, or fatal")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "obsidiand: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log := logging.New(os.Stderr, logging.ParseLevel(cmd.LogLevel))

	idleTimeout, err := time.ParseDuration(cmd.IdleTimeout)
	if err != nil {
		return fmt.Errorf("obsidiand: --idle-timeout: %w", err)
	}

	cfg := config.Config{
		ListenAddr:     cmd.ListenAddr,
		MaxConnections: cmd.MaxConnections,
		QueueDepth:     cmd.QueueDepth,
		FramePoolSize:  cmd.FramePoolSize,
		IdleTimeout:    idleTimeout,
		AcceptBacklog:  config.Default().AcceptBacklog,
	}

	eng, err := engine.Start(cfg, log, gameplay.Discard{})
	if err != nil {
		return fmt.Errorf("obsidiand: start: %w", err)
	}
	defer eng.Close()

	log.Info("listening", logging.Str("addr", cfg.ListenAddr))

	errc := make(chan error, 1)
	go func() { errc <- eng.Run() }()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return fmt.Errorf("obsidiand: engine stopped: %w", err)
	case sig := <-sigc:
		log.Info("caught signal, shutting down", logging.Str("signal", sig.String()))
		return nil
	}
}
