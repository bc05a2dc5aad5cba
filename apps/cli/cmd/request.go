package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/multisync/packages/core/config"
	"github.com/abdul-hamid-achik/multisync/packages/echo"
	"github.com/abdul-hamid-achik/multisync/packages/formdata"
	"github.com/abdul-hamid-achik/multisync/packages/har"
	"github.com/abdul-hamid-achik/multisync/packages/http"
	"github.com/abdul-hamid-achik/multisync/packages/inspect"
	"github.com/abdul-hamid-achik/multisync/packages/output"
	"github.com/abdul-hamid-achik/multisync/packages/repeat"
	"github.com/abdul-hamid-achik/multisync/packages/watch"
)

var (
	hostFlag           string
	portFlag           int
	methodFlag         string
	headerFlags        []string
	copyNameFlag       string
	fileFlag           string
	fieldFlags         []string
	dataFlag           string
	timeoutFlag        string
	connectTimeoutFlag string
	outputFlag         string
	includeFlag        bool
	noBodyFlag         bool
	queryFlags         []string
	schemaFlag         string
	harFlag            string
	repeatFlag         int
	concurrencyFlag    int
	rateFlag           float64
	p95Flag            string
	maxErrorRateFlag   float64
	watchFlag          bool
	withEchoFlag       bool
)

var requestCmd = &cobra.Command{
	Use:   "request [path]",
	Short: "Send a request and wait for the full response",
	Long: `Send one HTTP/1.1 request and print the response once it has been
received completely. --copyname and --file attach a file as a
multipart/form-data part; -F adds plain form fields.

Examples:
  multisync request /file --port 9898 --copyname file --file README.md
  multisync request /upload -H "X-BB-SESSION: abc" --copyname doc --file report.pdf
  multisync request /items -X PUT --data '{"name":"x"}' -H "Content-Type: application/json"
  multisync request /file --echo --copyname file --file README.md --query files[0].sha256
  multisync request / --repeat 100 --rate 20 --concurrency 4 --p95 50ms
  multisync request /file --copyname file --file data.csv --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: requestCommand,
}

func init() {
	f := requestCmd.Flags()

	f.StringVar(&hostFlag, "host", getEnvString("MULTISYNC_HOST", ""), "Target host (env: MULTISYNC_HOST)")
	f.IntVarP(&portFlag, "port", "p", getEnvInt("MULTISYNC_PORT", 0), "Target port (env: MULTISYNC_PORT)")
	f.StringVarP(&methodFlag, "method", "X", "", "Request method (default GET, or POST with a body)")
	f.StringArrayVarP(&headerFlags, "header", "H", nil, `Request header "Name: value" (repeatable)`)

	f.StringVar(&copyNameFlag, "copyname", "", "Form field name for the attached file")
	f.StringVar(&fileFlag, "file", "", "Path of the file to attach")
	f.StringArrayVarP(&fieldFlags, "field", "F", nil, `Form field "name=value" (repeatable)`)
	f.StringVarP(&dataFlag, "data", "d", "", "Raw request body, or @path to read it from a file")

	f.StringVar(&timeoutFlag, "timeout", getEnvString("MULTISYNC_TIMEOUT", ""), "Request timeout (e.g., 30s, 500ms) (env: MULTISYNC_TIMEOUT)")
	f.StringVar(&connectTimeoutFlag, "connect-timeout", "", "Connect timeout (e.g., 5s)")

	f.StringVarP(&outputFlag, "output", "o", getEnvString("MULTISYNC_OUTPUT", ""), "Output format: console, json (env: MULTISYNC_OUTPUT)")
	f.BoolVarP(&includeFlag, "include", "i", false, "Print response headers")
	f.BoolVar(&noBodyFlag, "no-body", false, "Do not print the response body")

	f.StringArrayVarP(&queryFlags, "query", "q", nil, "Extract a value, e.g. status, header.Content-Type, body.files[0].size (repeatable)")
	f.StringVar(&schemaFlag, "schema", "", "Validate the JSON body against this JSON schema file")
	f.StringVar(&harFlag, "har", "", "Record the exchange(s) to this HAR file")

	f.IntVarP(&repeatFlag, "repeat", "n", 1, "Send the request this many times and print a summary")
	f.IntVar(&concurrencyFlag, "concurrency", 1, "Parallel requests when repeating")
	f.Float64VarP(&rateFlag, "rate", "r", 0, "Requests per second when repeating (0 = unpaced)")
	f.StringVar(&p95Flag, "p95", "", "Fail when p95 latency exceeds this duration (with --repeat)")
	f.Float64Var(&maxErrorRateFlag, "max-error-rate", 0, "Fail when the error rate exceeds this fraction (with --repeat)")

	f.BoolVarP(&watchFlag, "watch", "w", false, "Re-send whenever the attached file, @data file or schema changes")
	f.BoolVar(&withEchoFlag, "echo", false, "Start a local echo server and send the request to it")
}

func requestCommand(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	opts, err := buildOptions(cfg, args)
	if err != nil {
		return usageError(err)
	}

	thresholds, err := buildThresholds()
	if err != nil {
		return usageError(err)
	}

	var watchPaths []string
	if watchFlag {
		watchPaths = watchTargets()
		if len(watchPaths) == 0 {
			return usageError(errors.New("--watch needs --file, --data @path or --schema"))
		}
	}

	formatter, err := output.New(cfg.Output, cmd.OutOrStdout(),
		output.WithNoColor(cfg.GetNoColor()),
		output.WithVerbose(cfg.GetVerbose()),
		output.WithInclude(includeFlag),
		output.WithBody(!noBodyFlag),
	)
	if err != nil {
		return usageError(err)
	}

	var recorder *har.Recorder
	if harFlag != "" {
		recorder = har.NewRecorder(har.WithCreator("multisync", version))
	}

	x := &exchanger{
		client:     newClient(cfg),
		formatter:  formatter,
		recorder:   recorder,
		thresholds: thresholds,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(gctx)
	defer cancelRun()

	if withEchoFlag {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to start echo server: %w", err)
		}
		opts.Host = "127.0.0.1"
		opts.Port = ln.Addr().(*net.TCPAddr).Port

		server := echo.NewServer(echo.WithLogger(Logger))
		g.Go(func() error {
			return server.Serve(runCtx, ln)
		})
	}

	var outcome error
	g.Go(func() error {
		defer cancelRun()

		outcome = x.run(runCtx, opts)
		if !watchFlag {
			return nil
		}

		w, err := watch.New(watchPaths, watch.WithLogger(Logger))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching %s for changes... (press Ctrl+C to stop)\n", strings.Join(watchPaths, ", "))
		return w.Run(runCtx, func(ctx context.Context, changed string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nFile changed: %s\nRe-sending...\n\n", changed)
			outcome = x.run(ctx, opts)
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if recorder != nil {
		if err := recorder.WriteFile(harFlag); err != nil {
			return err
		}
		Logger.Info("har written", "path", harFlag, "entries", recorder.Len())
	}

	return outcome
}

// exchanger performs one run: a single request with its checks, or a
// repeated batch with its summary.
type exchanger struct {
	client     *http.Client
	formatter  output.Formatter
	recorder   *har.Recorder
	thresholds repeat.Thresholds
}

func (x *exchanger) run(ctx context.Context, opts *http.Options) error {
	if repeatFlag > 1 {
		return x.runRepeated(ctx, opts)
	}
	return x.runOnce(ctx, opts)
}

func (x *exchanger) runOnce(ctx context.Context, opts *http.Options) error {
	resp, err := x.client.DoContext(ctx, opts)
	if err != nil {
		x.formatter.FormatError(err)
		return &exitError{code: exitCodeFor(err), err: err, silent: true}
	}
	defer resp.End()

	if x.recorder != nil {
		x.recorder.Record(resp)
	}
	x.formatter.FormatResponse(resp)

	failed := !resp.IsSuccess()
	for _, expr := range queryFlags {
		value, found, err := inspect.Query(resp, expr)
		if err != nil {
			x.formatter.FormatError(fmt.Errorf("query %s: %w", expr, err))
			failed = true
			continue
		}
		x.formatter.FormatQuery(expr, value, found)
		if !found {
			failed = true
		}
	}

	if schemaFlag != "" {
		result, err := inspect.ValidateSchemaFile(resp, schemaFlag)
		if err != nil {
			x.formatter.FormatError(err)
			return &exitError{code: ExitFailure, err: err, silent: true}
		}
		x.formatter.FormatSchema(result)
		if !result.Valid {
			failed = true
		}
	}

	if failed {
		return &exitError{code: ExitFailure, silent: true}
	}
	return nil
}

func (x *exchanger) runRepeated(ctx context.Context, opts *http.Options) error {
	runner, err := repeat.NewRunner(x.client, repeat.Config{
		Count:       repeatFlag,
		Concurrency: concurrencyFlag,
		Rate:        rateFlag,
	}, repeat.WithResultFunc(func(i int, resp *http.Response, err error) {
		if err != nil {
			Logger.Debug("request failed", "n", i, "error", err)
			return
		}
		Logger.Debug("request completed", "n", i, "status", resp.StatusCode, "duration", resp.Duration)
		if x.recorder != nil {
			x.recorder.Record(resp)
		}
	}))
	if err != nil {
		return usageError(err)
	}

	summary, runErr := runner.Run(ctx, opts)
	checks := x.thresholds.Evaluate(summary)
	x.formatter.FormatSummary(summary, checks)
	if runErr != nil {
		return &exitError{code: ExitFailure, err: runErr}
	}

	failed := summary.ErrorCount > 0
	for _, c := range checks {
		if !c.Passed {
			failed = true
		}
	}
	if failed {
		return &exitError{code: ExitFailure, silent: true}
	}
	return nil
}

// resolveConfig loads the config file and applies flags that were set.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	fileCfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	overrides := &config.Config{
		Host:   hostFlag,
		Port:   portFlag,
		Output: outputFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, usageError(fmt.Errorf("invalid timeout value %q: %w", timeoutFlag, err))
		}
		overrides.Timeout = int(d.Milliseconds())
	}
	if connectTimeoutFlag != "" {
		d, err := time.ParseDuration(connectTimeoutFlag)
		if err != nil {
			return nil, usageError(fmt.Errorf("invalid connect timeout value %q: %w", connectTimeoutFlag, err))
		}
		overrides.ConnectTimeout = int(d.Milliseconds())
	}
	if verboseFlag || cmd.Flags().Changed("verbose") {
		overrides.Verbose = config.BoolPtr(verboseFlag)
	}
	if noColorFlag || cmd.Flags().Changed("no-color") {
		overrides.NoColor = config.BoolPtr(noColorFlag)
	}

	cfg := fileCfg.Merge(overrides)
	if err := cfg.Validate(); err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

func newClient(cfg *config.Config) *http.Client {
	opts := []http.ClientOption{
		http.WithTimeout(cfg.TimeoutDuration()),
		http.WithConnectTimeout(cfg.ConnectTimeoutDuration()),
		http.WithDefaultHeaders(cfg.Headers),
		http.WithLogger(Logger),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, http.WithUserAgent(cfg.UserAgent))
	}
	return http.NewClient(opts...)
}

func buildOptions(cfg *config.Config, args []string) (*http.Options, error) {
	path := "/"
	if len(args) > 0 {
		path = args[0]
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}

	opts := http.NewOptions(cfg.Host, cfg.Port, path)
	opts.Method = methodFlag
	opts.Attach(copyNameFlag, fileFlag)

	headers, err := parseHeaders(headerFlags)
	if err != nil {
		return nil, err
	}
	opts.Headers = headers

	fields, err := parseFields(fieldFlags)
	if err != nil {
		return nil, err
	}
	opts.Fields = fields

	if dataFlag != "" {
		body, err := readData(dataFlag)
		if err != nil {
			return nil, err
		}
		opts.Body = body
	}

	return opts, nil
}

func buildThresholds() (repeat.Thresholds, error) {
	t := repeat.Thresholds{ErrorRate: maxErrorRateFlag}
	if p95Flag != "" {
		d, err := time.ParseDuration(p95Flag)
		if err != nil {
			return t, fmt.Errorf("invalid p95 value %q: %w", p95Flag, err)
		}
		t.P95 = d
	}
	return t, nil
}

func watchTargets() []string {
	var paths []string
	if fileFlag != "" {
		paths = append(paths, fileFlag)
	}
	if strings.HasPrefix(dataFlag, "@") {
		paths = append(paths, strings.TrimPrefix(dataFlag, "@"))
	}
	if schemaFlag != "" {
		paths = append(paths, schemaFlag)
	}
	return paths
}

// parseHeaders parses "Name: value" pairs.
func parseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, h := range values {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// parseFields parses "name=value" pairs, keeping their order.
func parseFields(values []string) ([]formdata.Field, error) {
	var fields []formdata.Field
	for _, f := range values {
		name, value, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q, expected name=value", f)
		}
		fields = append(fields, formdata.Field{Name: name, Value: value})
	}
	return fields, nil
}

// readData returns the literal body, or the file contents for "@path".
func readData(data string) ([]byte, error) {
	if !strings.HasPrefix(data, "@") {
		return []byte(data), nil
	}
	path := strings.TrimPrefix(data, "@")
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, &http.FileReadError{Path: path, Err: err}
	}
	return body, nil
}
