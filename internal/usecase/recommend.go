package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rentwise/internal/domain"
	"rentwise/internal/ports"
	"rentwise/internal/recommend"
)

// Recommender answers "best town between these locations" queries by
// combining the geocoder, the town reference set and store aggregates.
type Recommender struct {
	geocoder   ports.Geocoder
	aggregator *Aggregator
	ranker     *recommend.Ranker
	logger     *slog.Logger
}

// NewRecommender wires the ranking dependencies.
func NewRecommender(geocoder ports.Geocoder, aggregator *Aggregator, ranker *recommend.Ranker, logger *slog.Logger) *Recommender {
	return &Recommender{
		geocoder:   geocoder,
		aggregator: aggregator,
		ranker:     ranker,
		logger:     logger,
	}
}

// RecommendBetween resolves up to three free-text locations (or
// "lat,lng" literals), computes their centroid and ranks every
// reference town by weighted distance and price. Zero resolvable
// locations is a validation error.
func (r *Recommender) RecommendBetween(ctx context.Context, locations []string, alpha float64) (domain.Recommendation, error) {
	points, err := r.resolvePoints(ctx, locations)
	if err != nil {
		return domain.Recommendation{}, err
	}
	if len(points) == 0 {
		return domain.Recommendation{}, recommend.ErrNoPoints
	}

	center, err := recommend.Center(points)
	if err != nil {
		return domain.Recommendation{}, err
	}

	nearest, distance := r.ranker.NearestTown(center)

	stats, err := r.aggregator.AllTownStatistics(ctx)
	if err != nil {
		return domain.Recommendation{}, err
	}

	ranked := r.ranker.RankByDistanceAndPrice(center, stats, alpha)

	return domain.Recommendation{
		Center:      center,
		NearestTown: domain.NearestTown{Name: nearest.Name, DistanceMeters: distance},
		RankedTowns: ranked,
	}, nil
}

func (r *Recommender) resolvePoints(ctx context.Context, locations []string) ([]domain.GeoPoint, error) {
	var points []domain.GeoPoint
	for _, loc := range locations {
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}

		if point, ok := recommend.ParseLatLng(loc); ok {
			points = append(points, point)
			continue
		}

		formatted, point, err := r.geocoder.Geocode(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", loc, err)
		}
		r.debug("geocoded location", "input", loc, "resolved", formatted)
		points = append(points, point)
	}
	return points, nil
}

func (r *Recommender) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
