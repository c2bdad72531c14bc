package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	salesexportapp "github.com/sazar-neudorff/productmanager/internal/application/salesexport"
	"github.com/sazar-neudorff/productmanager/internal/domain/salesexport"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/config"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/exportfile"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/logger"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/weclapp"
	"go.uber.org/zap"
)

func main() {
	var (
		startDate string
		endDate   string
		output    string
		logLevel  string
	)
	flag.StringVar(&startDate, "start-date", "", "First day of the report (YYYY-MM-DD); defaults to the Monday two ISO weeks back")
	flag.StringVar(&endDate, "end-date", "", "Last day of the report (YYYY-MM-DD); defaults to the Sunday after start")
	flag.StringVar(&output, "output", "", "Output file; defaults to <export.output_dir>/weclapp_orders_<start>_<end>.csv")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	start, err := parseDate(startDate)
	if err != nil {
		log.Fatal("Invalid --start-date", zap.String("value", startDate), zap.Error(err))
	}
	end, err := parseDate(endDate)
	if err != nil {
		log.Fatal("Invalid --end-date", zap.String("value", endDate), zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	client, err := weclapp.NewClient(weclapp.Config{
		BaseURL:  cfg.Export.BaseURL,
		APIToken: cfg.Export.APIToken,
		Timeout:  cfg.Export.Timeout,
		PageSize: cfg.Export.PageSize,
	})
	if err != nil {
		log.Fatal("Failed to create weclapp client", zap.Error(err))
	}

	rules := salesexport.DefaultRules()
	rules.Channels = cfg.Export.Channels
	rules.ExcludedKeywords = cfg.Export.ExcludedKeywords
	rules.PositionStatus = cfg.Export.PositionStatus

	exporter := salesexportapp.NewExporter(client, exportfile.NewWriter(cfg.Export.OutputDir),
		salesexportapp.WithRules(rules),
		salesexportapp.WithOffsetWeeks(cfg.Export.OffsetWeeks),
		salesexportapp.WithLogger(log),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := exporter.Export(ctx, salesexportapp.Request{Start: start, End: end, OutputPath: output})
	if err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}
	log.Info("Export finished",
		zap.Stringer("window", result.Window),
		zap.Int("rows", result.RowsWritten),
		zap.String("path", result.OutputPath),
	)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
