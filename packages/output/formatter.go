package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/multisync/packages/http"
	"github.com/abdul-hamid-achik/multisync/packages/inspect"
	"github.com/abdul-hamid-achik/multisync/packages/repeat"
)

type Formatter interface {
	FormatResponse(resp *http.Response)
	FormatQuery(expr string, value any, found bool)
	FormatSchema(result *inspect.SchemaResult)
	FormatSummary(summary *repeat.Summary, checks []repeat.ThresholdResult)
	FormatError(err error)
}

// Flushable is implemented by formatters that buffer until the run ends.
type Flushable interface {
	Flush() error
}

// New returns the formatter for format ("console" or "json") writing to w.
func New(format string, w io.Writer, consoleOpts ...ConsoleOption) (Formatter, error) {
	switch strings.ToLower(format) {
	case "", "console":
		return NewConsoleFormatter(append([]ConsoleOption{WithWriter(w)}, consoleOpts...)...), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
