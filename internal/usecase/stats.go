package usecase

import (
	"context"
	"fmt"

	"rentwise/internal/domain"
	"rentwise/internal/ports"
)

// Aggregator derives town statistics from the record store at read
// time. There is no caching layer; every call reflects the current
// store contents.
type Aggregator struct {
	repository ports.TransactionRepository
}

// NewAggregator wires the record store.
func NewAggregator(repository ports.TransactionRepository) *Aggregator {
	return &Aggregator{repository: repository}
}

// TownStatistic returns listing count and average rent for one town.
func (a *Aggregator) TownStatistic(ctx context.Context, town string) (domain.TownStatistic, error) {
	stat, err := a.repository.TownStatistic(ctx, town)
	if err != nil {
		return domain.TownStatistic{}, fmt.Errorf("town statistic %s: %w", town, err)
	}
	return stat, nil
}

// AllTownStatistics returns per-town aggregates keyed by town name.
func (a *Aggregator) AllTownStatistics(ctx context.Context) (map[string]domain.TownStatistic, error) {
	summaries, err := a.repository.ListTownsByScore(ctx, ports.SearchFilters{Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("all town statistics: %w", err)
	}

	stats := make(map[string]domain.TownStatistic, len(summaries))
	for _, s := range summaries {
		stats[s.Town] = domain.TownStatistic{
			ListingCount:   s.ListingCount,
			AvgMonthlyRent: s.AvgMonthlyRent,
			Available:      s.ListingCount > 0,
		}
	}
	return stats, nil
}

// AllTownStatisticsByFlatType groups the aggregates by flat type.
// Every flat type of the fixed category set is present for every town;
// categories without data carry an explicit unavailable entry so
// consumers can render the full set.
func (a *Aggregator) AllTownStatisticsByFlatType(ctx context.Context) (map[string]map[string]domain.TownStatistic, error) {
	grouped, err := a.repository.TownStatisticsByFlatType(ctx)
	if err != nil {
		return nil, fmt.Errorf("grouped town statistics: %w", err)
	}

	for town, byType := range grouped {
		for _, flatType := range domain.FlatTypes {
			if _, ok := byType[flatType]; !ok {
				grouped[town][flatType] = domain.TownStatistic{Available: false}
			}
		}
	}
	return grouped, nil
}
