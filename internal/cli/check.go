/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yakumioto/otelfilter"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [directives]",
		Short: "Parse directives and print them in the order they are tried",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var spec string
			if len(args) > 0 {
				spec = args[0]
			}

			logger := root.logger(cmd.ErrOrStderr())
			filter, err := root.buildFilter(logger, spec)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, d := range filter.Directives() {
				_, _ = fmt.Fprintf(out, "%d\t%s\n", i+1, d)
			}
			_, _ = fmt.Fprintf(out, "default\t%s\n", otelfilter.LevelString(filter.DefaultLevel()))
			_, _ = fmt.Fprintf(out, "max\t%s\n", otelfilter.LevelString(filter.MaxLevel()))
			return nil
		},
	}
}
