package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"obsnote/adapters/mlagent"
	"obsnote/adapters/search"
	"obsnote/domain/core"
	"obsnote/domain/sample"
	"obsnote/internal"
	"obsnote/internal/analysis/bubbleup"
	"obsnote/internal/polling"
	"obsnote/ports"
)

func main() {
	v := viper.New()
	var configPath, logLevel string
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "obsnote",
		Short: "Observability notebook analyses from the command line",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			internal.ConfigureLogging(logLevel, "text")
			if noColor {
				color.NoColor = true
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .obsnote.yaml in . or $HOME)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("search-url", "", "search backend URL")
	_ = v.BindPFlag("search.url", rootCmd.PersistentFlags().Lookup("search-url"))

	load := func() (*cliConfig, error) {
		return loadCLIConfig(v, configPath)
	}

	rootCmd.AddCommand(
		newBubbleUpCmd(load),
		newFieldsCmd(load),
		newTracesCmd(load),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func searchClient(cfg *cliConfig) *search.Client {
	return search.NewClient(search.Config{
		BaseURL:  cfg.Search.URL,
		Username: cfg.Search.Username,
		Password: cfg.Search.Password,
		Timeout:  cfg.Search.Timeout,
	})
}

// selectionWindow resolves --start/--end, falling back to the last
// duration ending now
func selectionWindow(start, end string, last time.Duration) (sample.TimeWindow, error) {
	if start == "" && end == "" {
		now := time.Now().UTC()
		return sample.TimeWindow{Start: now.Add(-last), End: now}, nil
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return sample.TimeWindow{}, fmt.Errorf("invalid --start (use RFC3339): %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return sample.TimeWindow{}, fmt.Errorf("invalid --end (use RFC3339): %w", err)
	}
	return sample.TimeWindow{Start: s, End: e}, nil
}

func parseFilters(raw []string) ([]sample.Filter, error) {
	filters := make([]sample.Filter, 0, len(raw))
	for _, f := range raw {
		if !json.Valid([]byte(f)) {
			return nil, fmt.Errorf("filter is not valid JSON: %s", f)
		}
		filters = append(filters, sample.Filter(f))
	}
	return filters, nil
}

func newBubbleUpCmd(load func() (*cliConfig, error)) *cobra.Command {
	var index, timeField, start, end, format, output string
	var last time.Duration
	var filters []string
	var sampleSize, maxResults int

	cmd := &cobra.Command{
		Use:   "bubbleup",
		Short: "Compare field distributions of a time window against its baseline",
		Long: `Sample the selection window and the window before it, then rank the
fields whose value distribution changed most.

Example: obsnote bubbleup --index 'logs-*' --time-field @timestamp --last 15m
         obsnote bubbleup --index 'logs-*' --start 2024-03-01T12:00:00Z --end 2024-03-01T12:10:00Z --format xlsx -o out.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			window, err := selectionWindow(start, end, last)
			if err != nil {
				return err
			}
			parsed, err := parseFilters(filters)
			if err != nil {
				return err
			}
			if sampleSize <= 0 {
				sampleSize = cfg.Analysis.SampleSize
			}
			if maxResults <= 0 {
				maxResults = cfg.Analysis.MaxResults
			}

			client := searchClient(cfg)
			analyzer := bubbleup.NewAnalyzer(
				bubbleup.NewSampler(client, sampleSize),
				bubbleup.NewFieldDiscoverer(client),
				bubbleup.Options{GroupCount: cfg.Analysis.GroupCount, MaxResults: maxResults},
			)

			result, err := analyzer.Run(cmd.Context(), bubbleup.RunRequest{
				SampleRequest: bubbleup.SampleRequest{
					Index:     core.IndexName(index),
					TimeField: timeField,
					Selection: window,
					Filters:   parsed,
				},
			}, func(step, total int, stage string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", step, total, stage)
			})
			if err != nil {
				return err
			}

			w, closeFn, err := outputWriter(cmd.OutOrStdout(), output)
			if err != nil {
				return err
			}
			defer closeFn()
			return writeComparison(w, format, result)
		},
	}

	cmd.Flags().StringVar(&index, "index", "", "index pattern to sample")
	cmd.Flags().StringVar(&timeField, "time-field", "@timestamp", "timestamp field of the index")
	cmd.Flags().StringVar(&start, "start", "", "selection start (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "selection end (RFC3339)")
	cmd.Flags().DurationVar(&last, "last", 15*time.Minute, "selection length ending now, when --start/--end are not set")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "extra query clause as JSON (repeatable)")
	cmd.Flags().IntVar(&sampleSize, "sample-size", 0, "documents per window")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "fields to report")
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json, yaml or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newFieldsCmd(load func() (*cliConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "fields [index]",
		Short: "List the comparable keyword fields of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			fields, err := searchClient(cfg).GetFields(cmd.Context(), core.IndexName(args[0]))
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Field", "Storage type"})
			for _, f := range fields {
				t.AppendRow(table.Row{f.Name, f.StorageType})
			}
			t.AppendFooter(table.Row{"keyword fields", strings.Join(bubbleup.KeywordFieldNames(fields), ", ")})
			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}
}

func newTracesCmd(load func() (*cliConfig, error)) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "traces [interaction-id]",
		Short: "Follow the traces of an ML-agent interaction until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client := mlagent.NewClient(cfg.Agent.URL, cfg.Search.Timeout)
			updates := make(chan []ports.AgentTrace, 1)
			poller := polling.NewPoller[ports.AgentTrace](cfg.Agent.PollInterval, func(ctx context.Context) ([]ports.AgentTrace, bool, error) {
				return client.GetTraces(ctx, args[0])
			}, func(traces []ports.AgentTrace, _ bool) {
				select {
				case updates <- traces:
				default:
				}
			})
			poller.Start(ctx)
			defer poller.Stop()

			// failed fetches never reach updates, so also check on a tick
			tick := time.NewTicker(250 * time.Millisecond)
			defer tick.Stop()

			seen := 0
			for {
				select {
				case traces := <-updates:
					for _, tr := range traces[min(seen, len(traces)):] {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.New(color.Faint).Sprint(tr.Origin), tr.Input)
					}
					seen = len(traces)
				case <-tick.C:
				case <-ctx.Done():
					return ctx.Err()
				}

				if !poller.Active() {
					traces, finished, err := poller.Snapshot()
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout())
					traceTable(cmd.OutOrStdout(), traces, finished)
					return nil
				}
			}
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "give up after this long")
	return cmd
}

func outputWriter(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
