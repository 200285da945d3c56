/*
 * Copyright (c) 2024 yakumioto <yaku.mioto@gmail.com>
 * All rights reserved.
 */

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yakumioto/otelfilter"
)

type evalOptions struct {
	target    string
	level     string
	spanName  string
	spanLevel string
	spans     []string
	fields    []string
}

func newEvalCmd(root *rootOptions) *cobra.Command {
	opts := &evalOptions{}

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Report whether an event or span would be recorded",
		Long: `Report whether an event or span would be recorded.

Enclosing spans are given outermost first with --span name or
--span name:field=value,field=value. Field values are read like directive
values: a quoted value is recorded as debug text, anything else as a bool,
integer, float or string.

With --span-name the record is a span of that name, otherwise an event.`,
		Example: `  otelfilter eval -f 'error,[{user=admin}]=debug' --span 'login:user=admin' --level debug`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := root.logger(cmd.ErrOrStderr())
			filter, err := root.buildFilter(logger, "")
			if err != nil {
				return err
			}

			level, err := otelfilter.ParseLevel(opts.level)
			if err != nil {
				return err
			}
			spanLevel, err := otelfilter.ParseLevel(opts.spanLevel)
			if err != nil {
				return err
			}
			fields, err := parseFieldArgs(opts.fields)
			if err != nil {
				return err
			}

			scope := filter.NewScope()
			for _, arg := range opts.spans {
				name, spanFields, err := parseSpanArg(arg)
				if err != nil {
					return err
				}
				frame := otelfilter.NewFrame(name, opts.target, spanLevel, spanFields...)
				if !scope.OnSpanEnter(frame) {
					logger.Info("enclosing span rejected, not entered", "span", name)
					continue
				}
				logger.Debug("entered span", "span", name, "depth", scope.Depth())
			}

			var admitted bool
			if opts.spanName != "" {
				admitted = scope.OnSpanEnter(otelfilter.NewFrame(opts.spanName, opts.target, level, fields...))
			} else {
				admitted = scope.OnEvent(opts.target, level, fields)
			}

			result := "rejected"
			if admitted {
				result = "admitted"
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "target of the record and its spans")
	cmd.Flags().StringVarP(&opts.level, "level", "l", "info", "level of the record")
	cmd.Flags().StringVar(&opts.spanName, "span-name", "", "evaluate a span of this name instead of an event")
	cmd.Flags().StringVar(&opts.spanLevel, "span-level", "info", "level of the enclosing spans")
	cmd.Flags().StringArrayVarP(&opts.spans, "span", "s", nil, "enclosing span, name[:field=value,...], outermost first")
	cmd.Flags().StringArrayVar(&opts.fields, "field", nil, "field of the record, name=value")

	return cmd
}

func parseSpanArg(arg string) (string, []otelfilter.Field, error) {
	name, rest, found := strings.Cut(arg, ":")
	if name == "" {
		return "", nil, fmt.Errorf("span %q has no name", arg)
	}
	if !found || rest == "" {
		return name, nil, nil
	}

	fields, err := parseFieldArgs(strings.Split(rest, ","))
	if err != nil {
		return "", nil, fmt.Errorf("span %s: %w", name, err)
	}
	return name, fields, nil
}

func parseFieldArgs(args []string) ([]otelfilter.Field, error) {
	fields := make([]otelfilter.Field, 0, len(args))
	for _, arg := range args {
		name, lit, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("field %q is not name=value", arg)
		}

		val, err := otelfilter.ParseLiteral(lit)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		fields = append(fields, otelfilter.Field{Name: name, Value: val})
	}
	return fields, nil
}
