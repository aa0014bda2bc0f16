package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentwise/internal/domain"
	"rentwise/internal/recommend"
)

func testRecommender(repo *fakeRepo) *Recommender {
	ranker := recommend.NewRankerWith([]domain.TownCentroid{
		{Name: "BEDOK", Lat: 1.3236, Lng: 103.9273},
		{Name: "YISHUN", Lat: 1.4304, Lng: 103.8354},
	})
	geocoder := &fakeGeocoder{book: map[string]domain.GeoPoint{
		"Changi Airport": {Lat: 1.3644, Lng: 103.9915},
	}}
	return NewRecommender(geocoder, NewAggregator(repo), ranker, nil)
}

func TestRecommendBetweenLiteralPoints(t *testing.T) {
	t.Parallel()

	r := testRecommender(newFakeRepo())

	rec, err := r.RecommendBetween(context.Background(), []string{"1.30,103.90", "1.34,103.94"}, recommend.DefaultAlpha)
	require.NoError(t, err)
	assert.InDelta(t, 1.32, rec.Center.Lat, 1e-9)
	assert.InDelta(t, 103.92, rec.Center.Lng, 1e-9)
	assert.Equal(t, "BEDOK", rec.NearestTown.Name)
	require.Len(t, rec.RankedTowns, 2)
	assert.Equal(t, "BEDOK", rec.RankedTowns[0].Name)
}

func TestRecommendBetweenGeocodesFreeText(t *testing.T) {
	t.Parallel()

	r := testRecommender(newFakeRepo())

	rec, err := r.RecommendBetween(context.Background(), []string{"Changi Airport"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "BEDOK", rec.NearestTown.Name)
}

func TestRecommendBetweenRequiresAPoint(t *testing.T) {
	t.Parallel()

	r := testRecommender(newFakeRepo())

	_, err := r.RecommendBetween(context.Background(), []string{"", "   "}, 0.7)
	assert.ErrorIs(t, err, recommend.ErrNoPoints)
}

func TestRecommendBetweenSurfacesGeocodeFailure(t *testing.T) {
	t.Parallel()

	r := testRecommender(newFakeRepo())

	_, err := r.RecommendBetween(context.Background(), []string{"unknown place"}, 0.7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown place")
}

func TestRecommendBetweenUsesStorePrices(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	_, err := repo.Upsert(context.Background(), []domain.TransactionRecord{
		{ID: "1", Town: "BEDOK", MonthlyRent: 9000},
		{ID: "2", Town: "YISHUN", MonthlyRent: 1000},
	}, "test")
	require.NoError(t, err)

	r := testRecommender(repo)

	// alpha=0 ranks purely by price, so the far but cheap town wins.
	rec, err := r.RecommendBetween(context.Background(), []string{"1.3236,103.9273"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "YISHUN", rec.RankedTowns[0].Name)
	require.NotNil(t, rec.RankedTowns[0].AvgMonthlyRent)
	assert.Equal(t, 1000, *rec.RankedTowns[0].AvgMonthlyRent)
}
