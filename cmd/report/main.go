package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"terra-platform/internal/export"
	"terra-platform/internal/pipeline"
	"terra-platform/internal/services"
	"terra-platform/pkg/logging"
	"terra-platform/pkg/metrics"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	file := fs.String("file", "data/terra_data.csv", "Terra CSV file to summarize")
	start := fs.String("start", pipeline.DefaultStartDate, "Inclusive window start (YYYY-MM-DD)")
	end := fs.String("end", pipeline.DefaultEndDate, "Inclusive window end (YYYY-MM-DD)")
	xlsxPath := fs.String("xlsx", "", "Write the monthly series to this XLSX file")
	height := fs.Int("height", 12, "Chart height in rows")
	width := fs.Int("width", 0, "Chart width in columns (0 plots one column per month)")
	logLevel := fs.String("log-level", "warn", "Log level written to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	window, err := pipeline.NewWindow(*start, *end)
	if err != nil {
		return err
	}

	logger := logging.NewStructuredLogger("terra-report", "1.0.0", logging.ParseLevel(*logLevel))
	logger.SetOutput(stderr)
	metricsCollector := metrics.NewCollector("terra_report", prometheus.NewRegistry())

	ctx := context.Background()
	source, err := services.NewFileSource(ctx, *file, logger, metricsCollector)
	if err != nil {
		return err
	}

	result, err := services.NewAtmosphereService(source, logger, metricsCollector).Series(ctx, window)
	if err != nil {
		return err
	}

	printReport(stdout, result, *height, *width)

	if *xlsxPath != "" {
		if err := export.SaveXLSX(*xlsxPath, result); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nWrote %s\n", *xlsxPath)
	}

	return nil
}

func printReport(w io.Writer, result *services.SeriesResult, height, width int) {
	fmt.Fprintf(w, "MOPITT Terra series %s to %s\n", result.StartDate, result.EndDate)
	fmt.Fprintf(w, "Showing %d data points from %d months\n\n", result.DataPoints, result.Months)

	s := result.Summary
	fmt.Fprintf(w, "Average CO:  %.3f ppm\n", s.AverageCO)
	fmt.Fprintf(w, "Max CO:      %.3f ppm\n", s.MaxCO)
	fmt.Fprintf(w, "Average AOD: %.3f\n", s.AverageAOD)
	fmt.Fprintf(w, "Max AOD:     %.3f\n", s.MaxAOD)

	if len(result.Monthly) == 0 {
		fmt.Fprintln(w, "\nNo observations in range")
		return
	}

	for _, chart := range []struct {
		values  []float64
		caption string
	}{
		{export.COSeries(result.Monthly), "Monthly average CO (ppm)"},
		{export.AODSeries(result.Monthly), "Monthly average AOD"},
	} {
		if plot := export.Chart(chart.values, height, width, chart.caption); plot != "" {
			fmt.Fprintf(w, "\n%s\n", plot)
		}
	}

	first, last := result.Monthly[0].Period, result.Monthly[len(result.Monthly)-1].Period
	fmt.Fprintf(w, "\n%s .. %s\n", first, last)
}
