/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

// Package cli implements the otelfilter command.
package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yakumioto/otelfilter"
)

type rootOptions struct {
	config       string
	env          string
	filter       string
	defaultLevel string
	verbose      bool
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd creates the otelfilter command with its subcommands.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "otelfilter",
		Short: "Check and evaluate log filter directives",
		Long: `Check and evaluate log filter directives.

A filter is read from --filter, from the YAML file given with --config, or
from the environment variable named by --env, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.config, "config", "", "YAML file with default_level and directives")
	cmd.PersistentFlags().StringVar(&opts.env, "env", otelfilter.DefaultEnv, "environment variable holding the directives")
	cmd.PersistentFlags().StringVarP(&opts.filter, "filter", "f", "", "directives, e.g. 'error,db[{user=admin}]=debug'")
	cmd.PersistentFlags().StringVar(&opts.defaultLevel, "default-level", "", "threshold when no directive applies (default error)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug messages to stderr")

	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))

	return cmd
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// buildFilter builds the filter selected by the flags. spec, when not empty,
// takes precedence over every other source.
func (o *rootOptions) buildFilter(logger *slog.Logger, spec string) (*otelfilter.Filter, error) {
	var opts []otelfilter.FilterOption
	if o.defaultLevel != "" {
		level, err := otelfilter.ParseLevel(o.defaultLevel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, otelfilter.WithDefaultLevel(level))
	}

	if spec == "" {
		spec = o.filter
	}

	switch {
	case spec != "":
		logger.Debug("using directives from the command line", "directives", spec)
		return otelfilter.New(spec, opts...)
	case o.config != "":
		logger.Debug("loading config", "path", o.config)
		cfg, err := otelfilter.LoadConfig(o.config)
		if err != nil {
			return nil, err
		}
		return cfg.Filter(opts...)
	default:
		logger.Debug("reading directives from the environment", "env", o.env, "directives", os.Getenv(o.env))
		return otelfilter.FromEnv(o.env, opts...)
	}
}
