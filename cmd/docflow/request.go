package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/leofalp/docflow/core/client"
	"github.com/leofalp/docflow/core/client/middleware"
	"github.com/leofalp/docflow/core/config"
	"github.com/leofalp/docflow/core/content"
	"github.com/leofalp/docflow/core/request"
	"github.com/leofalp/docflow/core/stream"
	"github.com/leofalp/docflow/providers/observability/slogobs"
)

func runRequest(cmd *cobra.Command, opts *requestOptions, path string) (err error) {
	cfg, err := loadConfig(opts.cfgFile)
	if err != nil {
		return err
	}

	observer := newObserver(opts, cmd.ErrOrStderr())
	clientOpts := []func(*client.ClientOptions){client.WithObserver(observer)}
	if opts.verbose {
		clientOpts = append(clientOpts, client.WithLogger(observer.Logger(), middleware.LogLevelStandard))
	}
	if opts.autoKey {
		clientOpts = append(clientOpts, client.WithAutoIdempotencyKey())
	}
	if opts.metrics {
		registry := prometheus.NewRegistry()
		metricsMW, mwErr := middleware.NewMetricsMiddleware(middleware.MetricsConfig{Registerer: registry})
		if mwErr != nil {
			return mwErr
		}
		clientOpts = append(clientOpts, client.WithMiddleware(metricsMW))
		defer func() {
			if writeErr := writeMetrics(cmd.ErrOrStderr(), registry); err == nil {
				err = writeErr
			}
		}()
	}

	c, err := client.New(cfg, clientOpts...)
	if err != nil {
		return err
	}

	prepared, err := buildPrepared(opts, path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	var issueOpts []client.IssueOption
	var decodeOpts []content.Option
	if opts.repairJSON {
		decodeOpts = append(decodeOpts, content.WithJSONRepair())
	}
	if opts.htmlToMarkdown {
		decodeOpts = append(decodeOpts, content.WithHTMLToMarkdown())
	}
	if len(decodeOpts) > 0 {
		issueOpts = append(issueOpts, client.WithDecodeOptions(decodeOpts...))
	}
	if opts.keepMalformed {
		issueOpts = append(issueOpts, client.WithKeepMalformed())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	if prepared.Stream {
		s, err := c.Stream(ctx, prepared, issueOpts...)
		if err != nil {
			return err
		}
		return writeStream(out, s)
	}

	result, err := c.Do(ctx, prepared, issueOpts...)
	if err != nil {
		return err
	}
	if result.StatusCode >= 400 {
		fmt.Fprintf(cmd.ErrOrStderr(), "HTTP %d\n", result.StatusCode)
	}
	if result.Kind == content.KindJSONStream {
		for _, event := range result.Events {
			if err := writeEvent(out, event); err != nil {
				return err
			}
		}
		return nil
	}
	return writePayload(out, result.Payload)
}

// loadConfig reads the YAML file when one is given and the environment
// otherwise. Validation happens in client.New.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.FromEnv()
}

func newObserver(opts *requestOptions, output io.Writer) *slogobs.Observer {
	level := slog.LevelWarn
	switch {
	case opts.logLevel != "":
		level = slogobs.ParseLogLevel(opts.logLevel)
	case os.Getenv("DOCFLOW_LOG_LEVEL") != "" || os.Getenv("LOG_LEVEL") != "":
		level = slogobs.GetLogLevelFromEnv()
	case opts.verbose:
		level = slog.LevelInfo
	}

	format := slogobs.GetFormatFromEnv()
	if opts.logFormat != "" {
		format = slogobs.ParseFormat(opts.logFormat)
	}

	return slogobs.New(
		slogobs.WithFormat(format),
		slogobs.WithLevel(level),
		slogobs.WithOutput(output),
	)
}

func buildPrepared(opts *requestOptions, path string, stdin io.Reader) (request.PreparedRequest, error) {
	prepared := request.PreparedRequest{
		Method:         strings.ToUpper(opts.method),
		URL:            path,
		IdempotencyKey: opts.idempotencyKey,
		ForceRefresh:   opts.forceRefresh,
		RaiseForStatus: !opts.noRaise,
		Stream:         opts.stream,
	}

	var err error
	if prepared.Query, err = parseKeyValues(opts.query); err != nil {
		return prepared, fmt.Errorf("invalid --query: %w", err)
	}
	if prepared.FormFields, err = parseKeyValues(opts.fields); err != nil {
		return prepared, fmt.Errorf("invalid --field: %w", err)
	}
	if prepared.Headers, err = parseHeaders(opts.headers); err != nil {
		return prepared, err
	}
	if prepared.Files, err = loadFiles(opts.files); err != nil {
		return prepared, err
	}
	if opts.data != "" {
		body, err := readData(opts.data, stdin)
		if err != nil {
			return prepared, err
		}
		prepared.JSONBody = body
	}
	return prepared, nil
}

// parseKeyValues turns key=value pairs into a map. A key given more than
// once maps to all of its values in order.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		switch existing := values[key].(type) {
		case nil:
			values[key] = value
		case string:
			values[key] = []string{existing, value}
		case []string:
			values[key] = append(existing, value)
		}
	}
	return values, nil
}

func parseHeaders(lines []string) (map[string]string, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --header %q: expected Name: value", line)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// loadFiles reads upload specs of the form path or field=path.
func loadFiles(specs []string) ([]request.File, error) {
	files := make([]request.File, 0, len(specs))
	for _, spec := range specs {
		field, path := "", spec
		if key, rest, ok := strings.Cut(spec, "="); ok && key != "" && !strings.ContainsAny(key, `/\`) {
			field, path = key, rest
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload %q: %w", path, err)
		}
		files = append(files, request.File{
			Field:    field,
			Filename: filepath.Base(path),
			Content:  data,
		})
	}
	return files, nil
}

// readData reads a JSON body from a file, or from stdin for "-".
func readData(source string, stdin io.Reader) (json.RawMessage, error) {
	var data []byte
	var err error
	if source == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read request body %q: %w", source, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("request body %q is not valid JSON", source)
	}
	return json.RawMessage(data), nil
}

func writePayload(out io.Writer, payload *content.Payload) error {
	if payload == nil {
		return nil
	}
	switch payload.Kind {
	case content.KindJSON:
		if len(bytes.TrimSpace(payload.Raw)) == 0 {
			return nil
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, payload.Raw, "", "  "); err != nil {
			return fmt.Errorf("failed to format response: %w", err)
		}
		buf.WriteByte('\n')
		_, err := out.Write(buf.Bytes())
		return err
	case content.KindText:
		text := payload.Text
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		_, err := io.WriteString(out, text)
		return err
	default:
		_, err := out.Write(payload.Raw)
		return err
	}
}

type textLine struct {
	Text string `json:"text"`
}

type malformedLine struct {
	Error string `json:"error"`
	Line  string `json:"line"`
}

// writeStream prints one JSON object per event as events arrive.
func writeStream(out io.Writer, s *stream.Stream) error {
	for event, err := range s.Iter() {
		if err != nil {
			return err
		}
		if err := writeEvent(out, event); err != nil {
			return err
		}
	}
	return nil
}

func writeEvent(out io.Writer, event stream.DecodedEvent) error {
	line, err := eventLine(event)
	if err != nil {
		return err
	}
	_, err = out.Write(append(line, '\n'))
	return err
}

func eventLine(event stream.DecodedEvent) ([]byte, error) {
	switch {
	case event.Err != nil:
		return json.Marshal(malformedLine{Error: event.Err.Error(), Line: event.Text})
	case event.Kind == stream.EventText:
		return json.Marshal(textLine{Text: event.Text})
	default:
		return event.Value, nil
	}
}

// writeMetrics prints every gathered series as one line.
func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, pair := range metric.GetLabel() {
				labels = append(labels, pair.GetName()+"="+strconv.Quote(pair.GetValue()))
			}
			name := family.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}

			switch {
			case metric.GetCounter() != nil:
				fmt.Fprintf(w, "%s %g\n", name, metric.GetCounter().GetValue())
			case metric.GetHistogram() != nil:
				histogram := metric.GetHistogram()
				fmt.Fprintf(w, "%s count=%d sum=%.3fs\n", name, histogram.GetSampleCount(), histogram.GetSampleSum())
			}
		}
	}
	return nil
}
