package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"posledger/internal/domain"
	"posledger/internal/service"
)

type LowStockSource interface {
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)
}

// LowStockMonitor periodically logs a warning for every active product at or
// below its minimum stock level. It only reads.
type LowStockMonitor struct {
	scheduler gocron.Scheduler
	source    LowStockSource
	logger    *zap.Logger
	timeout   time.Duration
}

func NewLowStockMonitor(source LowStockSource, logger *zap.Logger, interval time.Duration) (*LowStockMonitor, error) {
	if interval <= 0 {
		return nil, errors.New("low stock scan interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	m := &LowStockMonitor{
		scheduler: scheduler,
		source:    source,
		logger:    logger.Named("low-stock"),
		timeout:   interval,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.run),
		gocron.WithName("low-stock-scan"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return m, nil
}

func (m *LowStockMonitor) Start() {
	m.logger.Info("low stock monitor started")
	m.scheduler.Start()
}

func (m *LowStockMonitor) Stop() error {
	m.logger.Info("low stock monitor stopping")
	return m.scheduler.Shutdown()
}

func (m *LowStockMonitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if _, err := m.Scan(ctx); err != nil {
		m.logger.Error("low stock scan failed", zap.Error(err))
	}
}

// Scan runs one pass and returns the alerts it logged.
func (m *LowStockMonitor) Scan(ctx context.Context) ([]domain.LowStockAlert, error) {
	products, err := m.source.ListLowStockProducts(ctx)
	if err != nil {
		return nil, err
	}
	alerts := service.LowStockAlerts(products)
	for _, alert := range alerts {
		m.logger.Warn("product at or below minimum stock",
			zap.Int64("product_id", alert.ProductID),
			zap.String("sku", alert.SKU),
			zap.Int("stock_quantity", alert.StockQuantity),
			zap.Int("min_stock_level", alert.MinStockLevel),
		)
	}
	return alerts, nil
}
