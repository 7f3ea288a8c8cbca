package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/radar/backend/internal/s1_universe"
	"github.com/wonny/radar/backend/pkg/logger"
)

// StockListSyncer refreshes the instrument master list
type StockListSyncer interface {
	SyncStockList(ctx context.Context) (*s1_universe.StockListResult, error)
}

// StockListJob refreshes the stock list and index membership weekly
type StockListJob struct {
	syncer StockListSyncer
	logger *logger.Logger
}

// NewStockListJob creates a new stock list job
func NewStockListJob(syncer StockListSyncer, log *logger.Logger) *StockListJob {
	return &StockListJob{
		syncer: syncer,
		logger: log.WithField("job", "stock_list_sync"),
	}
}

// Name returns the job name
func (j *StockListJob) Name() string {
	return "stock_list_sync"
}

// Schedule returns the cron schedule (Mondays 08:00, before the open)
func (j *StockListJob) Schedule() string {
	return "0 0 8 * * MON"
}

// Run executes the stock list sync
func (j *StockListJob) Run(ctx context.Context) error {
	res, err := j.syncer.SyncStockList(ctx)
	if err != nil {
		return fmt.Errorf("stock list sync: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"instruments":     res.Instruments,
		"index_members":   res.IndexMembers,
		"members_updated": res.MembersUpdated,
	}).Info("Stock list synced")
	return nil
}
