package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyjia/travel-reimbursement/internal/application/dispatcher"
	"github.com/garyjia/travel-reimbursement/internal/application/port"
	"github.com/garyjia/travel-reimbursement/internal/application/service"
	"github.com/garyjia/travel-reimbursement/internal/application/workflow"
	"github.com/garyjia/travel-reimbursement/internal/config"
	"github.com/garyjia/travel-reimbursement/internal/domain/allowance"
	"github.com/garyjia/travel-reimbursement/internal/domain/event"
	"github.com/garyjia/travel-reimbursement/internal/domain/rate"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/exchange"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/external/lark"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/external/mail"
	receipts "github.com/garyjia/travel-reimbursement/internal/infrastructure/external/openai"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/notify"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/ratesource"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/storage"
	"github.com/garyjia/travel-reimbursement/internal/infrastructure/worker"
	httpapi "github.com/garyjia/travel-reimbursement/internal/interfaces/http"
	"github.com/garyjia/travel-reimbursement/pkg/database"
	"github.com/garyjia/travel-reimbursement/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "travel-reimbursement",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Server exited successfully")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting travel reimbursement service",
		zap.Int("port", cfg.Server.Port),
		zap.String("reporting_currency", cfg.Approval.ReportingCurrency))

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	if err := sqlite.Migrate(db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Initialize repositories
	store := sqlite.NewDB(db.DB, logger)
	expenseRepo := sqlite.NewExpenseRepository(store, logger)
	workflowRepo := sqlite.NewWorkflowRepository(store, logger)
	rateRepo := sqlite.NewRateRepository(store, logger)
	exchangeRepo := sqlite.NewExchangeRateRepository(store, logger)

	table, err := loadRateTable(ctx, cfg, rateRepo, logger)
	if err != nil {
		return err
	}
	calculator := allowance.NewCalculator(table)

	// Configured rates win over stored ones; a direct pair from either wins over an inverse
	staticRates, err := exchange.NewStaticProvider(cfg.Exchange.Rates)
	if err != nil {
		return fmt.Errorf("exchange rates: %w", err)
	}
	rates := exchange.NewChain(logger, staticRates, exchangeRepo)

	events := dispatcher.NewDispatcher(logger)
	defer events.Close()
	subscribeAuditLog(events, logger)

	notifiers, err := buildNotifiers(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := workflow.NewEngine(expenseRepo, workflowRepo, store, cfg.RuleSet(), logger,
		workflow.WithDispatcher(events),
		workflow.WithSlaBreachHandler(workflow.NewEscalationHandler(cfg.EscalationChain(), logger, notifiers...)),
	)
	if err != nil {
		return fmt.Errorf("initialize approval engine: %w", err)
	}

	receiptStore, err := storage.NewLocalFileStorage(cfg.Storage.ReceiptDir, logger)
	if err != nil {
		return fmt.Errorf("initialize receipt storage: %w", err)
	}
	opts := []service.ExpenseOption{service.WithReceiptStorage(receiptStore)}
	if cfg.OpenAI.APIKey != "" {
		opts = append(opts, service.WithReceiptRecognizer(receipts.NewReceiptRecognizer(receipts.Config{
			APIKey:        cfg.OpenAI.APIKey,
			BaseURL:       cfg.OpenAI.BaseURL,
			Model:         cfg.OpenAI.Model,
			MaxTokens:     cfg.OpenAI.MaxTokens,
			Timeout:       cfg.OpenAI.Timeout,
			MinConfidence: cfg.OpenAI.MinConfidence,
		}, logger)))
	} else {
		logger.Info("Receipt recognition disabled: no OpenAI API key configured")
	}

	expenses, err := service.NewExpenseService(expenseRepo, calculator, rates, cfg.Approval.ReportingCurrency, logger, opts...)
	if err != nil {
		return fmt.Errorf("initialize expense service: %w", err)
	}

	workers := worker.NewManager(logger)
	if cfg.Worker.Enabled {
		workers.Register(worker.NewSlaSweeper(worker.SlaSweeperConfig{
			Interval:  cfg.Worker.Interval,
			BatchSize: cfg.Worker.BatchSize,
		}, engine, logger))
	}
	if err := workers.StartAll(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	defer func() {
		if err := workers.StopAll(); err != nil {
			logger.Error("Failed to stop workers", zap.Error(err))
		}
	}()

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, httpapi.Dependencies{
		Expenses:   expenses,
		Engine:     engine,
		Calculator: calculator,
		Rates:      rates,
	}, logger)

	return server.Start(ctx)
}

// loadRateTable imports the configured rate file, or reads the table stored by an
// earlier import when no file is configured
func loadRateTable(ctx context.Context, cfg *config.Config, repo *sqlite.RateRepository, logger *zap.Logger) (*rate.Table, error) {
	if cfg.Rates.Path != "" {
		table, err := ratesource.NewImporter(repo, logger).Import(ctx, cfg.Rates.Path, cfg.Rates.Sheet)
		if err != nil {
			return nil, fmt.Errorf("import rate table: %w", err)
		}
		return table, nil
	}

	table, err := repo.LoadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored rate table: %w", err)
	}
	if table.Len() == 0 {
		logger.Warn("Rate table is empty; per-diem and mileage requests will fail until rates are imported")
	}
	return table, nil
}

func buildNotifiers(cfg *config.Config, logger *zap.Logger) ([]port.EscalationNotifier, error) {
	var notifiers []port.EscalationNotifier

	if cfg.HasNotifier(config.NotifierLog) {
		notifiers = append(notifiers, notify.NewLogNotifier(logger))
	}
	if cfg.HasNotifier(config.NotifierLark) {
		notifiers = append(notifiers, lark.NewNotifier(lark.Config{
			AppID:         cfg.Lark.AppID,
			AppSecret:     cfg.Lark.AppSecret,
			ReceiveIDType: cfg.Lark.ReceiveIDType,
			Recipients:    cfg.Lark.Recipients,
			FallbackChat:  cfg.Lark.FallbackChat,
		}, logger))
	}
	if cfg.HasNotifier(config.NotifierSMTP) {
		n, err := mail.NewNotifier(mail.Config{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			Recipients: cfg.SMTP.Recipients,
			Fallback:   cfg.SMTP.Fallback,
			Locale:     cfg.SMTP.Locale,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize mail notifier: %w", err)
		}
		notifiers = append(notifiers, n)
	}

	logger.Info("Escalation notifiers configured", zap.Int("count", len(notifiers)))
	return notifiers, nil
}

// subscribeAuditLog records terminal decisions for the payroll export
func subscribeAuditLog(d dispatcher.Dispatcher, logger *zap.Logger) {
	record := func(ctx context.Context, evt *event.Event) error {
		logger.Info("Workflow finished",
			zap.String("event", string(evt.Type)),
			zap.String("workflow_id", evt.WorkflowID),
			zap.String("expense_id", evt.ExpenseID),
			zap.Any("amount", evt.Payload[event.KeyAmount]),
			zap.Any("currency", evt.Payload[event.KeyCurrency]))
		return nil
	}
	d.Subscribe(event.TypeWorkflowApproved, "audit-log", record)
	d.Subscribe(event.TypeWorkflowRejected, "audit-log", record)
}
