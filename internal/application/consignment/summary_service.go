package consignment

import (
	"context"

	"github.com/erp/consignment/internal/domain/consignment"
	"github.com/erp/consignment/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	SummarySourceAggregates = "aggregates"
	SummarySourceScan       = "scan"
)

// SummaryService produces supplier roll-ups
type SummaryService struct {
	scope       TransactionScope
	batchRepo   consignment.BatchRepository
	balanceRepo consignment.SupplierBalanceRepository
	logger      *zap.Logger
	retry       Options
}

// NewSummaryService creates a new SummaryService
func NewSummaryService(
	scope TransactionScope,
	batchRepo consignment.BatchRepository,
	balanceRepo consignment.SupplierBalanceRepository,
	logger *zap.Logger,
) *SummaryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryService{
		scope:       scope,
		batchRepo:   batchRepo,
		balanceRepo: balanceRepo,
		logger:      logger,
		retry:       DefaultOptions(),
	}
}

// ListSupplierSummaries returns per-supplier totals sorted by outstanding
// balance, largest first. Unfiltered requests read the running aggregates;
// filtered ones fold the matching batches.
func (s *SummaryService) ListSupplierSummaries(ctx context.Context, tenantID uuid.UUID, filter SummaryFilter) (*SupplierSummaryListResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_summary", "list")
	defer span.End()

	domainFilter := consignment.SummaryFilter{
		SupplierID: filter.SupplierID,
		DateFrom:   filter.DateFrom,
		DateTo:     filter.DateTo,
	}

	if domainFilter.IsEmpty() {
		balances, err := s.balanceRepo.FindAllForTenant(ctx, tenantID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		summaries := make([]consignment.SupplierSummary, 0, len(balances))
		for _, b := range balances {
			if b.TotalBatches == 0 && !b.CreditBalance.IsPositive() {
				continue
			}
			summaries = append(summaries, b.Summary())
		}
		consignment.SortSummaries(summaries)
		return &SupplierSummaryListResponse{
			Summaries: summaries,
			Stats:     consignment.StatsFromSummaries(summaries),
			Source:    SummarySourceAggregates,
		}, nil
	}

	batches, err := s.batchRepo.FindForSummary(ctx, tenantID, domainFilter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	summaries, stats := consignment.SummarizeBatches(batches)
	summaries, err = s.attachCredit(ctx, tenantID, domainFilter, summaries)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &SupplierSummaryListResponse{
		Summaries: summaries,
		Stats:     stats,
		Source:    SummarySourceScan,
	}, nil
}

// attachCredit copies carried credit onto the folded summaries. Suppliers
// holding credit without any counted batch in the window get a row of their
// own so the credit stays visible.
func (s *SummaryService) attachCredit(
	ctx context.Context,
	tenantID uuid.UUID,
	filter consignment.SummaryFilter,
	summaries []consignment.SupplierSummary,
) ([]consignment.SupplierSummary, error) {
	balances, err := s.balanceRepo.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	index := make(map[uuid.UUID]int, len(summaries))
	for i := range summaries {
		index[summaries[i].SupplierID] = i
	}

	added := false
	for _, b := range balances {
		if i, ok := index[b.SupplierID]; ok {
			summaries[i].CreditBalance = b.CreditBalance
			continue
		}
		if !b.CreditBalance.IsPositive() {
			continue
		}
		if filter.SupplierID != nil && *filter.SupplierID != b.SupplierID {
			continue
		}
		summaries = append(summaries, consignment.SupplierSummary{
			SupplierID:         b.SupplierID,
			TotalValue:         decimal.Zero,
			TotalSoldValue:     decimal.Zero,
			TotalPaid:          decimal.Zero,
			OutstandingBalance: decimal.Zero,
			CreditBalance:      b.CreditBalance,
		})
		added = true
	}
	if added {
		consignment.SortSummaries(summaries)
	}
	return summaries, nil
}

// RebuildSupplierBalances recomputes every running aggregate from the batches
// and corrects the ones that drifted. Credit balances are kept.
//
// The stored balances are read before the batches. A batch write committing
// in between has bumped its supplier's balance version, so the corrected row
// fails its version check instead of overwriting that write, and the whole
// pass is retried.
func (s *SummaryService) RebuildSupplierBalances(ctx context.Context, tenantID uuid.UUID) (*RebuildResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "consignment_summary", "rebuild")
	defer span.End()

	var resp *RebuildResponse
	err := retryOnConflict(ctx, s.retry, s.logger, "rebuild_supplier_balances", func() error {
		resp = &RebuildResponse{}
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			return s.rebuild(ctx, repos, tenantID, resp)
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if resp.Corrected > 0 {
		s.logger.Warn("supplier balances corrected",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("corrected", resp.Corrected),
		)
	}
	return resp, nil
}

func (s *SummaryService) rebuild(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, resp *RebuildResponse) error {
	balances, err := repos.BalanceRepo().FindAllForTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	batches, err := repos.BatchRepo().FindForSummary(ctx, tenantID, consignment.SummaryFilter{})
	if err != nil {
		return err
	}
	folded, _ := consignment.SummarizeBatches(batches)
	expected := make(map[uuid.UUID]consignment.SupplierSummary, len(folded))
	for _, sum := range folded {
		expected[sum.SupplierID] = sum
	}

	for _, b := range balances {
		sum, ok := expected[b.SupplierID]
		if !ok {
			sum = consignment.SupplierSummary{
				SupplierID:     b.SupplierID,
				TotalValue:     decimal.Zero,
				TotalSoldValue: decimal.Zero,
				TotalPaid:      decimal.Zero,
			}
		}
		delete(expected, b.SupplierID)
		if b.Matches(sum) {
			continue
		}
		b.Reset(sum)
		if err := repos.BalanceRepo().SaveWithLock(ctx, b); err != nil {
			return err
		}
		resp.Corrected++
	}
	for supplierID, sum := range expected {
		b := consignment.NewSupplierBalance(tenantID, supplierID)
		b.Reset(sum)
		if err := repos.BalanceRepo().Create(ctx, b); err != nil {
			return err
		}
		resp.Corrected++
	}
	resp.Suppliers = len(folded)
	return nil
}
