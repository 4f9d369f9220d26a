package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// requestOptions holds every flag of the root command.
type requestOptions struct {
	cfgFile   string
	logLevel  string
	logFormat string
	verbose   bool
	metrics   bool

	method         string
	stream         bool
	data           string
	files          []string
	fields         []string
	query          []string
	headers        []string
	idempotencyKey string
	autoKey        bool
	forceRefresh   bool
	keepMalformed  bool
	repairJSON     bool
	htmlToMarkdown bool
	noRaise        bool
}

func newRootCmd() *cobra.Command {
	opts := &requestOptions{}

	rootCmd := &cobra.Command{
		Use:   "docflow [flags] <path>",
		Short: "docflow - command line client for the docflow API",
		Long: `docflow sends a single request to the docflow API and prints the result.

Non-streamed JSON responses are printed indented. Streamed responses
(application/stream+json, application/x-ndjson, text/*) are printed as one
JSON object per line while they arrive.

Examples:
  # Fetch an extraction
  docflow /v1/extractions/ext_123

  # Upload two files with a form field
  docflow -X POST -F a.pdf -F attachment=b.png --field mode=fast /v1/documents

  # JSON body from stdin, streamed response
  echo '{"url":"https://example.com/a.pdf"}' | docflow -X POST -d - --stream /v1/extractions/stream`,
		Version:       Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, opts, args[0])
		},
	}

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&opts.cfgFile, "config", "c", "", "YAML config file (defaults to the environment)")
	persistent.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (default from DOCFLOW_LOG_LEVEL)")
	persistent.StringVar(&opts.logFormat, "log-format", "", "log format: compact, json (default from DOCFLOW_LOG_FORMAT)")
	persistent.BoolVarP(&opts.verbose, "verbose", "v", false, "log every HTTP attempt")
	persistent.BoolVar(&opts.metrics, "metrics", false, "print request metrics to stderr when done")

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.method, "method", "X", "GET", "HTTP method")
	flags.BoolVar(&opts.stream, "stream", false, "request a streamed response")
	flags.StringVarP(&opts.data, "data", "d", "", "JSON body file, or - for stdin")
	flags.StringArrayVarP(&opts.files, "file", "F", nil, "file to upload as [field=]path (repeatable)")
	flags.StringArrayVar(&opts.fields, "field", nil, "form field as key=value (repeatable)")
	flags.StringArrayVarP(&opts.query, "query", "q", nil, "query parameter as key=value (repeatable)")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "extra header as Name: value (repeatable)")
	flags.StringVar(&opts.idempotencyKey, "idempotency-key", "", "Idempotency-Key header value")
	flags.BoolVar(&opts.autoKey, "auto-idempotency-key", true, "generate an idempotency key for POST and PATCH")
	flags.BoolVar(&opts.forceRefresh, "force-refresh", false, "send Idempotency-ForceRefresh")
	flags.BoolVar(&opts.keepMalformed, "keep-malformed", false, "print malformed stream lines as error events")
	flags.BoolVar(&opts.repairJSON, "repair-json", false, "repair malformed JSON response bodies")
	flags.BoolVar(&opts.htmlToMarkdown, "html-to-markdown", false, "convert HTML responses to markdown")
	flags.BoolVar(&opts.noRaise, "no-raise", false, "print error responses instead of failing")

	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
