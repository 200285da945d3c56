/*
Package otelfilter decides which slog records and OpenTelemetry spans are emitted, using
per-target directives that may also depend on the spans currently entered and on the
values of their fields.

# Directives

A filter is built from a comma separated list of directives:

	target[span{field=value,...}]=level

Every part is optional. A directive without a target applies to every target, a lone
level such as "warn" sets the global level, and a directive without a level enables
everything down to trace:

	warn,db=info,http[request{user="admin"}]=debug,[{param_bool=true}]

Targets match by prefix, so "db" also covers "db/pool". When several directives apply
to a record the most specific one wins: directives naming a span or fields come first,
then longer targets, then directives naming a span, then directives with more fields.
Directives that tie keep the order in which they were declared.

Levels are the slog levels plus "trace" and "off", written in any case. The digits 0 to 5
stand for off, error, warn, info, debug and trace. Offsets such as "INFO+2" are accepted.

# Field values

A field value in a directive is typed by how it is written:
  - true and false match bool fields
  - integers match int fields, or uint fields when they do not fit an int64
  - numbers with a point or an exponent match float fields
  - quoted text matches the %+v rendering of any value
  - anything else matches string fields exactly

Values are never converted, so {x=12} does not match a uint 12 and {x=true} does not
match a named bool type, which is rendered through slog.KindAny. Quote the value to
match such fields by their text.

# Spans

StartSpan and Instrument enter a span when the Filter carried by the context admits
it, and only then start an OpenTelemetry span. The span is entered in the returned
context, so events logged with that context see its fields:

	ctx = otelfilter.NewContext(ctx, filter)
	ctx, span := otelfilter.StartSpan(ctx, "http", "request", slog.LevelInfo, slog.String("user", "admin"))
	defer span.End()

	logger.DebugContext(ctx, "parsed headers", "target", "http")

The entered spans are an immutable chain stored in the context. A context can be handed
to any number of goroutines, and each one sees the spans entered on the path that
produced its context and nothing entered elsewhere. Without a Filter in the context
StartSpan creates no span at all, while the Handler still filters records with its own
Filter.

Code that does not pass contexts can use a Scope, which enters and exits spans
explicitly for one goroutine.

# Handler

NewHandler wraps any slog.Handler. A record's target is taken from its "target"
attribute, or from the package of the calling function. Admitted records carry the
trace and span IDs of the current OpenTelemetry span and are recorded as span events
unless WithNoSpanEvents is given.

	filter, err := otelfilter.FromEnv(otelfilter.DefaultEnv)
	if err != nil {
	    return err
	}
	slog.SetDefault(slog.New(otelfilter.NewHandler(slog.NewJSONHandler(os.Stdout, nil), filter)))

Filters can also be loaded from YAML with LoadConfig.
*/
package otelfilter
