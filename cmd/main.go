package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"propval/api"
	"propval/internal"
	"propval/internal/app"
	"propval/internal/domain"
	"propval/internal/logger"
	"propval/internal/repository"
	"propval/internal/service"
	"propval/pkg/reportqueue"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var (
	candidatesPath string
	seriesPath     string
	subjectPath    string
	assessmentPath string
	configPath     string
	radiusMiles    float64
	maxSaleAgeDays int
	apiPort        int
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "propval",
		Short: "automated property valuation pipeline",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one valuation from local csv market data",
		RunE:  runValuation,
	}
	runCmd.Flags().StringVar(&candidatesPath, "candidates", "candidates.csv", "csv of candidate properties with sale history")
	runCmd.Flags().StringVar(&seriesPath, "series", "market_series.csv", "csv of the market price series")
	runCmd.Flags().StringVar(&subjectPath, "subject", "subject.json", "json file describing the subject property")
	runCmd.Flags().StringVar(&assessmentPath, "assessment", "", "optional json condition assessment")
	runCmd.Flags().StringVar(&configPath, "config", "", "optional json calibration overrides")
	runCmd.Flags().Float64Var(&radiusMiles, "radius", 5, "max comparable radius in miles")
	runCmd.Flags().IntVar(&maxSaleAgeDays, "max-sale-age", 365, "max comparable sale age in days")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the valuation api",
		RunE:  serveApi,
	}
	serveCmd.Flags().IntVar(&apiPort, "port", 3009, "port to listen on")
	serveCmd.Flags().StringVar(&candidatesPath, "candidates", "candidates.csv", "csv of candidate properties with sale history")
	serveCmd.Flags().StringVar(&seriesPath, "series", "market_series.csv", "csv of the market price series")
	serveCmd.Flags().StringVar(&configPath, "config", "", "optional json calibration overrides")

	rootCmd.AddCommand(runCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildHandler(marketData repository.MarketDataRepository, cfg internal.ValuationConfig) app.ValuationHandler {
	return app.ValuationHandler{
		MarketData:            marketData,
		Evaluators:            service.DefaultEvaluators(cfg),
		TrendService:          service.NewTrendService(marketData, cfg),
		ConditionService:      service.NewConditionService(cfg),
		ReconciliationService: service.NewReconciliationService(cfg),
		Config:                cfg,
	}
}

func runValuation(cmd *cobra.Command, args []string) error {
	log := logger.New()
	ctx := context.WithValue(context.Background(), logger.ContextKey, log)

	cfg, err := internal.LoadValuationConfig(configPath)
	if err != nil {
		return err
	}

	subject, err := loadSubject(subjectPath)
	if err != nil {
		return err
	}

	var assessment *domain.ConditionAssessment
	if assessmentPath != "" {
		assessment, err = loadAssessment(assessmentPath)
		if err != nil {
			return err
		}
	}

	marketData := repository.NewCSVMarketDataRepository(candidatesPath, seriesPath)
	handler := buildHandler(marketData, *cfg)

	now := time.Now().UTC()
	record, err := handler.RunValuation(ctx, app.RunValuationInput{
		Subject: *subject,
		Scope: domain.Scope{
			Center:         subject.Location,
			MaxRadiusMiles: radiusMiles,
			MaxSaleAgeDays: maxSaleAgeDays,
		},
		Window:     domain.Window{Start: now.AddDate(-2, 0, 0), End: now},
		Assessment: assessment,
	})
	if record != nil {
		internal.Pprint(record)
	}
	return err
}

func serveApi(cmd *cobra.Command, args []string) error {
	cfg, err := internal.LoadValuationConfig(configPath)
	if err != nil {
		return err
	}

	secrets, err := internal.LoadSecrets()
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", secrets.Db.ToConnectionStr())
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}

	marketData := repository.NewCSVMarketDataRepository(candidatesPath, seriesPath)
	handler := buildHandler(marketData, *cfg)
	recordRepository := repository.NewValuationRecordRepository(db)
	handler.RecordRepository = recordRepository

	if secrets.Amqp.Url != "" {
		publisher, err := reportqueue.NewPublisher(reportqueue.Config{
			Url:        secrets.Amqp.Url,
			Exchange:   secrets.Amqp.Exchange,
			RoutingKey: secrets.Amqp.RoutingKey,
		})
		if err != nil {
			return err
		}
		defer publisher.Close()
		handler.ReportPublisher = publisher
	}

	apiHandler := api.ApiHandler{
		ValuationHandler: handler,
		RecordRepository: recordRepository,
	}
	return apiHandler.StartApi(apiPort)
}

func loadSubject(path string) (*domain.Property, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subject file %s: %w", path, err)
	}
	subject := domain.Property{}
	if err := json.Unmarshal(bytes, &subject); err != nil {
		return nil, fmt.Errorf("failed to parse subject file: %w", err)
	}
	return &subject, nil
}

func loadAssessment(path string) (*domain.ConditionAssessment, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assessment file %s: %w", path, err)
	}
	assessment := domain.ConditionAssessment{}
	if err := json.Unmarshal(bytes, &assessment); err != nil {
		return nil, fmt.Errorf("failed to parse assessment file: %w", err)
	}
	return &assessment, nil
}
