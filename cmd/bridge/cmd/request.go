package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	resilientbridge "github.com/opengovern/resilient-bridge/v2"
	"github.com/opengovern/resilient-bridge/v2/adapters"
)

// ErrUnknownProvider is returned for a provider name without an adapter.
var ErrUnknownProvider = errors.New("unknown provider")

type requestOptions struct {
	data              string
	query             []string
	headers           []string
	token             string
	baseURL           string
	maxRetries        int
	timeout           time.Duration
	repeat            int
	concurrency       int
	requestsPerSecond float64
	useProviderLimits bool
}

func newRequestCmd(global *globalOptions) *cobra.Command {
	opts := &requestOptions{}
	cmd := &cobra.Command{
		Use:   "request <provider> <method> <path>",
		Short: "Send one API request through a provider adapter",
		Long: `Send a request through the named provider adapter, retrying when the
provider signals throttling. The JSON response is printed indented; on failure
the status, error kind and attempts are printed to stderr.

Credentials come from --token, or from {PROVIDER}_API_TOKEN (for example
GITHUB_API_TOKEN). GitHub App installations (GITHUB_APP_ID,
GITHUB_APP_PRIVATE_KEY_FILE, GITHUB_APP_INSTALLATION_ID), Azure service
principals (AZURE_TENANT_ID, AZURE_CLIENT_ID, AZURE_CLIENT_SECRET), Tailscale
OAuth clients (TAILSCALE_CLIENT_ID, TAILSCALE_CLIENT_SECRET) and registry
keychains are used when configured.

With --repeat the request is sent several times, --concurrency at a time, and
a summary is printed instead of the bodies.`,
		Example: `  bridge request github GET /repos/opengovern/resilient-bridge
  bridge request slack POST /chat.postMessage -d '{"channel":"C1","text":"hi"}'
  bridge request github GET /rate_limit --repeat 50 --concurrency 5 --use-provider-limits`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, global, opts, args[0], args[1], args[2])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.data, "data", "d", "", "JSON request body, or @file")
	f.StringArrayVarP(&opts.query, "query", "q", nil, "query parameter key=value (repeatable)")
	f.StringArrayVarP(&opts.headers, "header", "H", nil, "request header Name=value (repeatable)")
	f.StringVar(&opts.token, "token", "", "API token (overrides the environment)")
	f.StringVar(&opts.baseURL, "base-url", "", "override the adapter base URL")
	f.IntVar(&opts.maxRetries, "max-retries", -1, "retries after a throttled attempt (-1 keeps the adapter default)")
	f.DurationVar(&opts.timeout, "timeout", 0, "overall deadline, including retries")
	f.IntVar(&opts.repeat, "repeat", 1, "number of times to send the request")
	f.IntVar(&opts.concurrency, "concurrency", 1, "requests in flight with --repeat")
	f.Float64Var(&opts.requestsPerSecond, "rps", 0, "client-side request rate limit")
	f.BoolVar(&opts.useProviderLimits, "use-provider-limits", false, "wait for the reported reset once the provider says no requests remain")
	return cmd
}

func runRequest(cmd *cobra.Command, global *globalOptions, opts *requestOptions, provider, method, path string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	factory, ok := adapters.Lookup(provider)
	if !ok {
		return fmt.Errorf("%w: %q (known: %s)", ErrUnknownProvider, provider, strings.Join(adapters.Names(), ", "))
	}
	desc, err := opts.description(method, path)
	if err != nil {
		return err
	}
	creds, err := credentialsFor(ctx, provider, opts.token, opts.baseURL)
	if err != nil {
		return err
	}

	var adapterOpts []adapters.Option
	if opts.baseURL != "" {
		adapterOpts = append(adapterOpts, adapters.WithBaseURL(opts.baseURL))
	}
	if opts.maxRetries >= 0 {
		n := opts.maxRetries
		adapterOpts = append(adapterOpts, adapters.WithRateLimit(func(c *resilientbridge.RateLimitConfig) { c.MaxRetries = n }))
	}

	logger := log.New()
	logger.SetOutput(cmd.ErrOrStderr())
	sdk := resilientbridge.NewResilientBridge(resilientbridge.WithLogger(logger))
	sdk.SetDebug(global.verbose)
	sdk.RegisterProvider(provider, factory(creds, adapterOpts...), &resilientbridge.ProviderConfig{
		UseProviderLimits: opts.useProviderLimits,
		RequestsPerSecond: opts.requestsPerSecond,
		Burst:             max(opts.concurrency, 1),
	})

	if opts.repeat > 1 {
		return runRepeated(ctx, cmd, sdk, provider, desc, opts)
	}
	res, err := sdk.Request(ctx, provider, desc)
	if err != nil {
		printFailure(cmd.ErrOrStderr(), err)
		return err
	}
	return printResult(cmd.OutOrStdout(), res)
}

func (o *requestOptions) description(method, path string) (*resilientbridge.RequestDescription, error) {
	desc := &resilientbridge.RequestDescription{
		Method: strings.ToUpper(method),
		URL:    path,
	}
	if len(o.query) > 0 {
		desc.Query = map[string]any{}
		for _, kv := range o.query {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("--query %q: want key=value", kv)
			}
			// Repeated keys become a multi-valued parameter.
			switch prev := desc.Query[k].(type) {
			case nil:
				desc.Query[k] = v
			case string:
				desc.Query[k] = []string{prev, v}
			case []string:
				desc.Query[k] = append(prev, v)
			}
		}
	}
	if len(o.headers) > 0 {
		desc.Headers = map[string]string{}
		for _, kv := range o.headers {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("--header %q: want Name=value", kv)
			}
			desc.Headers[k] = v
		}
	}
	if o.data != "" {
		raw := []byte(o.data)
		if file, ok := strings.CutPrefix(o.data, "@"); ok {
			b, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("reading request body: %w", err)
			}
			raw = b
		}
		var body any
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("--data must be JSON: %w", err)
		}
		desc.Body = body
	}
	return desc, nil
}

func printResult(w io.Writer, res *resilientbridge.RequestResult) error {
	if len(res.JSON) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, res.JSON, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	}
	if res.Text != "" {
		_, err := fmt.Fprintln(w, res.Text)
		return err
	}
	_, err := fmt.Fprintf(w, "%d %s\n", res.StatusCode, res.StatusText)
	return err
}

func printFailure(w io.Writer, err error) {
	apiErr, ok := resilientbridge.AsAPIError(err)
	if !ok {
		fmt.Fprintf(w, "request failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "kind:     %s\n", apiErr.Kind)
	if apiErr.Status != 0 {
		fmt.Fprintf(w, "status:   %d %s\n", apiErr.Status, apiErr.StatusText)
	}
	if apiErr.Label != "" {
		fmt.Fprintf(w, "label:    %s\n", apiErr.Label)
	}
	fmt.Fprintf(w, "attempts: %d\n", apiErr.Attempts)
	if len(apiErr.Body) > 0 {
		fmt.Fprintf(w, "body:     %s\n", strings.TrimSpace(string(apiErr.Body)))
	}
}

// runRepeated sends the request opts.repeat times and prints a summary. Every outcome
// is counted, so the group goroutines never return an error.
func runRepeated(ctx context.Context, cmd *cobra.Command, sdk *resilientbridge.ResilientBridge, provider string, desc *resilientbridge.RequestDescription, opts *requestOptions) error {
	var (
		g                            errgroup.Group
		okCount, limitedCount, fails atomic.Int32
	)
	g.SetLimit(max(opts.concurrency, 1))
	start := time.Now()
	for i := 0; i < opts.repeat && ctx.Err() == nil; i++ {
		g.Go(func() error {
			_, err := sdk.Request(ctx, provider, desc)
			switch {
			case err == nil:
				okCount.Add(1)
			case resilientbridge.IsRateLimitError(err):
				limitedCount.Add(1)
			default:
				fails.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	succeeded, limited, fail := int(okCount.Load()), int(limitedCount.Load()), int(fails.Load())

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "requests=%d ok=%d rate_limited=%d failed=%d elapsed=%s\n",
		succeeded+limited+fail, succeeded, limited, fail, time.Since(start).Round(time.Millisecond))
	if info := sdk.GetRateLimitInfo(provider); info != nil {
		if info.Remaining != nil && info.Limit != nil {
			fmt.Fprintf(out, "remaining=%d/%d\n", *info.Remaining, *info.Limit)
		}
		if info.Reset != nil {
			fmt.Fprintf(out, "reset=%s\n", info.Reset.UTC().Format(time.RFC3339))
		}
	}
	if limited+fail > 0 {
		return fmt.Errorf("%d of %d requests failed", limited+fail, succeeded+limited+fail)
	}
	return ctx.Err()
}
