package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aponysus/smartretry/classify"
	httpretry "github.com/aponysus/smartretry/integrations/http"
	promobs "github.com/aponysus/smartretry/integrations/prometheus"
	"github.com/aponysus/smartretry/policy"
	"github.com/aponysus/smartretry/retry"
)

type requestFlags struct {
	method      string
	data        string
	headers     []string
	maxRetries  int
	delay       time.Duration
	backoff     string
	classifier  string
	metricsAddr string
}

func newRequestCmd(root *rootFlags) *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "request <url>",
		Short: "Send an HTTP request with retries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, root, flags, args[0])
		},
	}

	cmd.Flags().StringVarP(&flags.method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&flags.data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&flags.headers, "header", "H", nil, "request header as key=value (repeatable)")
	cmd.Flags().IntVar(&flags.maxRetries, "max-retries", 0, "total attempts, overrides config")
	cmd.Flags().DurationVar(&flags.delay, "delay", 0, "base backoff delay, overrides config")
	cmd.Flags().StringVar(&flags.backoff, "backoff", "", "backoff strategy: exponential, linear, none")
	cmd.Flags().StringVar(&flags.classifier, "classifier", "",
		fmt.Sprintf("retry predicate, overrides config (%s)", strings.Join(classify.NewDefaultRegistry().Names(), ", ")))
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	return cmd
}

func parseHeaders(raw []string) (http.Header, error) {
	header := http.Header{}
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid header %q, want key=value", kv)
		}
		header.Add(k, strings.TrimSpace(v))
	}
	return header, nil
}

func parseBody(data string) (any, error) {
	if data == "" {
		return nil, nil
	}
	var body any
	if err := json.Unmarshal([]byte(data), &body); err != nil {
		return nil, fmt.Errorf("--data is not valid JSON: %w", err)
	}
	return body, nil
}

func runRequest(cmd *cobra.Command, root *rootFlags, flags *requestFlags, url string) error {
	ctx := commandContext(cmd)

	header, err := parseHeaders(flags.headers)
	if err != nil {
		return err
	}
	body, err := parseBody(flags.data)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, root)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("classifier") {
		cfg.Retry.Classifier = flags.classifier
	}

	var opts []retry.Option
	if cmd.Flags().Changed("max-retries") {
		opts = append(opts, retry.WithMaxRetries(flags.maxRetries))
	}
	if cmd.Flags().Changed("delay") {
		opts = append(opts, retry.WithDelay(flags.delay))
	}
	if cmd.Flags().Changed("backoff") {
		kind, err := policy.ParseBackoff(flags.backoff)
		if err != nil {
			return err
		}
		opts = append(opts, retry.WithBackoff(kind))
	}

	metricsAddr := cfg.Metrics.Addr
	if flags.metricsAddr != "" {
		metricsAddr = flags.metricsAddr
	}
	var reg *prometheus.Registry
	if metricsAddr != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, retry.WithObserver(promobs.NewObserver(reg)))
	}

	e, err := openEnv(ctx, cmd, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		_ = e.Close()
	}()

	if reg != nil {
		stop, err := serveMetrics(e.logger, metricsAddr, reg)
		if err != nil {
			return err
		}
		defer stop()
	}

	client := httpretry.NewClient(e.exec, nil)
	res := client.ExecuteJSON(ctx, strings.ToUpper(flags.method), url, body, header)

	out := cmd.OutOrStdout()
	if !res.Success {
		_, _ = fmt.Fprintf(out, "request failed after %d attempts: %v\n", res.Attempts, res.Err)
		if res.RecordID != "" {
			_, _ = fmt.Fprintf(out, "record: %s\n", res.RecordID)
		}
		if res.StoreErr != nil {
			e.logger.Error("Failed to save failure record", "error", res.StoreErr)
		}
		return errRequestFailed
	}

	resp := res.Data
	defer func() {
		_ = resp.Body.Close()
	}()

	_, _ = fmt.Fprintf(out, "status: %d\nattempts: %d\n", resp.StatusCode, res.Attempts)
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	return nil
}

// serveMetrics exposes reg on addr and returns a function that shuts the
// server down.
func serveMetrics(logger *slog.Logger, addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on metrics addr: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
