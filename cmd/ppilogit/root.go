package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/YuminosukeSato/ppilogit/pkg/errors"
	"github.com/YuminosukeSato/ppilogit/pkg/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

type app struct {
	logLevel  string
	logFormat string

	logger     log.Logger
	removeHook func()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ppilogit",
		Short:         "Prediction-powered inference for logistic regression",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogging(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.removeHook != nil {
				a.removeHook()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "auto", "log format: auto, console or json")

	root.AddCommand(
		newSimulateCmd(a),
		newFitCmd(a),
		newExperimentCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setupLogging(w io.Writer) error {
	level, err := log.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}

	format := a.logFormat
	if format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "console"
		}
	}
	switch format {
	case "console":
		a.logger = log.NewZerologLogger(w, level, true)
	case "json":
		a.logger = log.NewSlogLogger(slog.New(log.NewCloudHandler(w, level)))
	default:
		return errors.NewInvalidInputError("ppilogit", "log-format", "must be auto, console or json", a.logFormat)
	}
	a.logger = a.logger.With(log.ComponentKey, "cli")
	a.removeHook = log.InstallWarnHook(a.logger)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "ppilogit %s\n", version)
			return err
		},
	}
}
