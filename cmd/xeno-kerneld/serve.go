package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/spf13/cobra"

	"github.com/xeno-editor/kernel/internal/kernel"
	"github.com/xeno-editor/kernel/internal/klog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the kernel until interrupted",
	RunE:  runServe,
}

func parseLogLevel(s string) (logiface.Level, error) {
	switch s {
	case "emergency":
		return logiface.LevelEmergency, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "critical":
		return logiface.LevelCritical, nil
	case "error":
		return logiface.LevelError, nil
	case "warning":
		return logiface.LevelWarning, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "info", "informational":
		return logiface.LevelInformational, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "trace":
		return logiface.LevelTrace, nil
	default:
		return 0, fmt.Errorf("xeno-kerneld: unknown log level %q", s)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return err
	}
	debounce, err := time.ParseDuration(lspDebounce)
	if err != nil {
		return fmt.Errorf("xeno-kerneld: invalid --lsp-debounce: %w", err)
	}

	log := klog.New(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k := kernel.New(ctx, kernel.Config{LSPDebounce: debounce}, log)
	defer k.Shutdown()

	log.Info().Log("xeno-kerneld: started")

	for {
		directive := k.RunOnce()
		if directive.ShouldQuit {
			return nil
		}

		timeout := 50 * time.Millisecond
		if directive.HasPollTimeout {
			timeout = directive.PollTimeout
		}

		select {
		case <-ctx.Done():
			log.Info().Log("xeno-kerneld: shutting down")
			return nil
		case <-time.After(timeout):
		}
	}
}
