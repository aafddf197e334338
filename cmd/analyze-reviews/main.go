// Command analyze-reviews runs the review pipeline over a JSON file of
// reviews and prints the aggregated result.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zombar/reviewinsights/internal/analyzer"
	"github.com/zombar/reviewinsights/internal/models"
	"github.com/zombar/reviewinsights/internal/pipeline"
	"github.com/zombar/reviewinsights/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "analyze-reviews:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("analyze-reviews", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts     models.Options
		versions string
		now      string
	)
	input := fs.String("in", "", "JSON file holding an array of reviews (\"-\" reads stdin)")
	out := fs.String("out", "", "Write the result JSON here instead of stdout")
	csvPath := fs.String("csv", "", "Also write the per-review CSV export here")
	lexiconPath := fs.String("lexicon", "", "YAML lexicon overriding the built-in word lists")
	logLevel := fs.String("log-level", "warn", "Log level")
	pretty := fs.Bool("pretty", true, "Indent the result JSON")
	fs.StringVar(&versions, "versions", "", "Comma separated known app versions")
	fs.StringVar(&now, "now", "", "RFC 3339 time anchoring date defaults and trend buckets")
	fs.StringVar(&opts.TimePeriod, "period", "", "Trend bucket size: day, week, month, quarter or year")
	fs.Float64Var(&opts.ClusterThreshold, "cluster-threshold", 0, "Similarity needed to merge phrases, within [0, 1]")
	fs.IntVar(&opts.MinClusterSize, "min-cluster-size", 0, "Smallest cluster reported")
	fs.IntVar(&opts.MaxClusters, "max-clusters", 0, "Most clusters kept per kind")
	fs.IntVar(&opts.MaxInsights, "max-insights", 0, "Most insights reported")
	fs.IntVar(&opts.MaxDataPoints, "max-data-points", 0, "Trend buckets per series")
	fs.BoolVar(&opts.StandardCSV, "standard-csv", false, "Quote the CSV export per RFC 4180")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" && fs.NArg() > 0 {
		*input = fs.Arg(0)
	}
	if *input == "" {
		fs.Usage()
		return errors.New("no input file")
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logging.ParseLevel(*logLevel)}))

	reviews, err := readReviews(*input)
	if err != nil {
		return err
	}

	req := pipeline.Request{
		Reviews:       reviews,
		KnownVersions: splitList(versions),
		Options:       opts,
	}
	if now != "" {
		req.Now, err = time.Parse(time.RFC3339, now)
		if err != nil {
			return fmt.Errorf("parse -now: %w", err)
		}
	}

	lexicon := analyzer.DefaultLexicon()
	if *lexiconPath != "" {
		lexicon, err = analyzer.LoadLexicon(*lexiconPath)
		if err != nil {
			return fmt.Errorf("load lexicon: %w", err)
		}
	}

	p := pipeline.New(analyzer.New(lexicon, logger), logger)
	result, err := p.Run(ctx, req, nil)
	if err != nil {
		return err
	}

	if *csvPath != "" {
		if err := os.WriteFile(*csvPath, []byte(result.Exports.CSV), 0o644); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}

	var data []byte
	if *pretty {
		data, err = json.MarshalIndent(result, "", "  ")
	} else {
		data, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	data = append(data, '\n')

	if *out != "" {
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		return nil
	}
	_, err = stdout.Write(data)
	return err
}

func readReviews(path string) ([]models.RawReview, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read reviews: %w", err)
	}

	var reviews []models.RawReview
	if err := json.Unmarshal(data, &reviews); err != nil {
		return nil, fmt.Errorf("decode reviews from %s: %w", path, err)
	}
	return reviews, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
