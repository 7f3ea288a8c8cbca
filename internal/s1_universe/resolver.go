package s1_universe

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/pkg/logger"
)

// membershipWindow is how far back index weights are searched. The vendor
// publishes constituent weights monthly.
const membershipWindow = 45 * 24 * time.Hour

// Resolver computes the tracked universe and maintains the instrument master
// ⭐ SSOT: S1 universe = index members ∪ watchlist
type Resolver struct {
	instruments contracts.InstrumentRepository
	watchlist   contracts.WatchlistRepository
	feed        contracts.Feed
	indexCode   string
	logger      *logger.Logger
	now         func() time.Time
}

var _ contracts.UniverseResolver = (*Resolver)(nil)

// NewResolver creates a new Resolver
func NewResolver(
	instruments contracts.InstrumentRepository,
	watchlist contracts.WatchlistRepository,
	feed contracts.Feed,
	indexCode string,
	log *logger.Logger,
) *Resolver {
	return &Resolver{
		instruments: instruments,
		watchlist:   watchlist,
		feed:        feed,
		indexCode:   indexCode,
		logger:      log.WithField("module", "s1_universe"),
		now:         time.Now,
	}
}

// Resolve returns index members ∪ watchlist. An empty universe is not an
// error; it is logged so callers can warn and skip.
func (r *Resolver) Resolve(ctx context.Context) (contracts.Universe, error) {
	members, err := r.instruments.IndexMemberCodes(ctx)
	if err != nil {
		return contracts.Universe{}, fmt.Errorf("load index members: %w", err)
	}
	watched, err := r.watchlist.WatchlistCodes(ctx)
	if err != nil {
		return contracts.Universe{}, fmt.Errorf("load watchlist: %w", err)
	}

	universe := contracts.NewUniverse(append(members, watched...)...)
	if universe.IsEmpty() {
		r.logger.Warn("Universe is empty: no index members and no watchlist entries")
	} else {
		r.logger.WithFields(map[string]interface{}{
			"index_members": len(members),
			"watchlist":     len(watched),
			"universe":      universe.Len(),
		}).Debug("Universe resolved")
	}

	return universe, nil
}

// StockListResult summarizes a master-list refresh
type StockListResult struct {
	Instruments    int  `json:"instruments"`
	IndexMembers   int  `json:"index_members"`
	MembersUpdated bool `json:"members_updated"`
}

// SyncStockList refreshes the instrument master and the index membership
// flags. When constituents cannot be loaded the flags are left untouched.
func (r *Resolver) SyncStockList(ctx context.Context) (*StockListResult, error) {
	instruments, err := r.feed.StockBasic(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stock list: %w", err)
	}
	if err := r.instruments.UpsertInstruments(ctx, instruments); err != nil {
		return nil, fmt.Errorf("save stock list: %w", err)
	}

	result := &StockListResult{Instruments: len(instruments)}

	end := contracts.Truncate(r.now())
	members, err := r.feed.IndexMembers(ctx, r.indexCode, end.Add(-membershipWindow), end)
	switch {
	case err != nil:
		r.logger.WithError(err).WithField("index", r.indexCode).Warn("Index constituents unavailable, membership flags unchanged")
	case len(members) == 0:
		r.logger.WithField("index", r.indexCode).Warn("No index constituents in window, membership flags unchanged")
	default:
		if err := r.instruments.SetIndexMembers(ctx, members); err != nil {
			return result, fmt.Errorf("mark index members: %w", err)
		}
		result.IndexMembers = len(members)
		result.MembersUpdated = true
	}

	r.logger.WithFields(map[string]interface{}{
		"instruments":   result.Instruments,
		"index":         r.indexCode,
		"index_members": result.IndexMembers,
	}).Info("Stock list synced")

	return result, nil
}
