package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/Checker-Finance/experiences/experience-api/internal/bootstrap"
	"github.com/Checker-Finance/experiences/experience-api/pkg/config"
	"github.com/Checker-Finance/experiences/pkg/logger"
	"github.com/Checker-Finance/experiences/pkg/model"
)

// checker is the aggregator surface exercised by the report.
type checker interface {
	DefaultWindow() model.DateRange
	ListProviderNames(ctx context.Context) []string
	ListAll(ctx context.Context, r model.DateRange, f model.Filters) ([]model.Experience, error)
	GetDetails(ctx context.Context, id string) (*model.ExperienceDetails, error)
	GetAvailability(ctx context.Context, id string, date model.Date) (model.Availability, error)
}

func main() {
	availOffset := flag.Int("availability-offset", 7, "days from today of the availability check")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger.Init("provider-check", cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	app, err := bootstrap.Build(ctx, cfg, logger.L(), bootstrap.Options{})
	if err != nil {
		logger.S().Fatalw("failed to bootstrap", "error", err)
	}
	defer app.Close()

	if err := run(ctx, app.Aggregator, os.Stdout, *availOffset); err != nil {
		fmt.Fprintf(os.Stderr, "provider check failed: %v\n", err)
		app.Close()
		os.Exit(1)
	}
}

// run prints the provider report: consulted sources, the merged listing by
// source, then details and availability of the first listed item.
func run(ctx context.Context, c checker, out io.Writer, availOffset int) error {
	p := func(format string, args ...any) { fmt.Fprintf(out, format+"\n", args...) }

	p("1. Available providers")
	names := c.ListProviderNames(ctx)
	for _, n := range names {
		p("   - %s", n)
	}

	r := c.DefaultWindow()
	p("2. Experiences %s .. %s", r.Start, r.End)
	items, err := c.ListAll(ctx, r, model.Filters{})
	if err != nil {
		return fmt.Errorf("list experiences: %w", err)
	}
	p("   total: %d", len(items))
	counts := map[string]int{}
	for _, it := range items {
		counts[it.Source]++
	}
	sources := make([]string, 0, len(counts))
	for s := range counts {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		p("   - %s: %d", s, counts[s])
	}
	for _, n := range names {
		if counts[n] == 0 {
			p("   - %s: no experiences", n)
		}
	}

	if len(items) == 0 {
		p("3. Details: skipped (no experiences)")
		p("4. Availability: skipped (no experiences)")
		return nil
	}

	id := strconv.FormatInt(items[0].ID, 10)
	p("3. Details for %s", id)
	d, err := c.GetDetails(ctx, id)
	switch {
	case err != nil:
		return fmt.Errorf("details %s: %w", id, err)
	case d == nil:
		p("   not found")
	default:
		p("   title: %s", d.Title)
		p("   source: %s", d.Source)
		p("   images: %d, categories: %d", len(d.Images), len(d.Categories))
	}

	date := r.Start.AddDays(availOffset)
	p("4. Availability for %s on %s", id, date)
	av, err := c.GetAvailability(ctx, id, date)
	if err != nil {
		return fmt.Errorf("availability %s: %w", id, err)
	}
	p("   available: %t", av.Available)
	p("   price options: %d", len(av.Prices))
	return nil
}
