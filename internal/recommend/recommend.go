// Package recommend ranks administrative towns around a set of points
// by combining great-circle distance with average rental price. It is
// pure computation; callers supply the price statistics.
package recommend

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"rentwise/internal/domain"
)

//go:embed towns.json
var townsData []byte

// ErrNoPoints is returned when a recommendation request carries no
// resolvable location at all.
var ErrNoPoints = errors.New("at least one location is required")

const (
	earthRadiusMeters = 6371000
	// DefaultAlpha favors proximity over price.
	DefaultAlpha = 0.7

	epsilon      = 1e-9
	neutralPrice = 0.5
)

// Ranker holds the town centroid reference set. The order of the set is
// the tie-break order for equal distances and scores.
type Ranker struct {
	towns []domain.TownCentroid
}

// NewRanker loads the embedded town reference data.
func NewRanker() (*Ranker, error) {
	var towns []domain.TownCentroid
	if err := json.Unmarshal(townsData, &towns); err != nil {
		return nil, fmt.Errorf("load town centroids: %w", err)
	}
	return &Ranker{towns: towns}, nil
}

// NewRankerWith uses a caller-supplied reference set.
func NewRankerWith(towns []domain.TownCentroid) *Ranker {
	return &Ranker{towns: towns}
}

// Towns exposes the reference set, in tie-break order.
func (r *Ranker) Towns() []domain.TownCentroid {
	return r.towns
}

// ParseLatLng reads a "lat,lng" literal. Callers use it to skip the
// geocoding round trip when the input already carries coordinates.
func ParseLatLng(value string) (domain.GeoPoint, bool) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return domain.GeoPoint{}, false
	}

	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil {
		return domain.GeoPoint{}, false
	}

	return domain.GeoPoint{Lat: lat, Lng: lng}, true
}

// Center computes the unweighted centroid of the given points. A planar
// approximation, acceptable at city scale.
func Center(points []domain.GeoPoint) (domain.GeoPoint, error) {
	if len(points) == 0 {
		return domain.GeoPoint{}, ErrNoPoints
	}

	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return domain.GeoPoint{Lat: sumLat / n, Lng: sumLng / n}, nil
}

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b domain.GeoPoint) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	s := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng/2), 2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(s))
}

// NearestTown finds the reference town closest to the point. Ties keep
// the earlier entry of the reference set.
func (r *Ranker) NearestTown(point domain.GeoPoint) (domain.TownCentroid, float64) {
	var (
		best  domain.TownCentroid
		bestD = math.Inf(1)
	)
	for _, t := range r.towns {
		d := Haversine(point, domain.GeoPoint{Lat: t.Lat, Lng: t.Lng})
		if d < bestD {
			bestD = d
			best = t
		}
	}
	return best, bestD
}

// RankByDistanceAndPrice scores every reference town against the center.
// Distance and price are min-max normalized over the candidate set and
// combined as alpha*distance + (1-alpha)*price, lower is better. Towns
// without price data get a neutral normalized price; when no candidate
// has price data at all, ranking falls back to distance alone.
func (r *Ranker) RankByDistanceAndPrice(center domain.GeoPoint, stats map[string]domain.TownStatistic, alpha float64) []domain.RankedTown {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	rows := make([]domain.RankedTown, 0, len(r.towns))
	anyPrice := false
	for _, t := range r.towns {
		row := domain.RankedTown{
			Name:           t.Name,
			DistanceMeters: Haversine(center, domain.GeoPoint{Lat: t.Lat, Lng: t.Lng}),
		}
		if stat, ok := stats[t.Name]; ok && stat.Available {
			rent := stat.AvgMonthlyRent
			row.AvgMonthlyRent = &rent
			row.ListingCount = stat.ListingCount
			anyPrice = true
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return rows
	}

	minD, maxD := math.Inf(1), math.Inf(-1)
	minP, maxP := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		minD = math.Min(minD, row.DistanceMeters)
		maxD = math.Max(maxD, row.DistanceMeters)
		if row.AvgMonthlyRent != nil {
			minP = math.Min(minP, float64(*row.AvgMonthlyRent))
			maxP = math.Max(maxP, float64(*row.AvgMonthlyRent))
		}
	}

	for i := range rows {
		nd := (rows[i].DistanceMeters - minD) / math.Max(epsilon, maxD-minD)

		np := neutralPrice
		if rows[i].AvgMonthlyRent != nil {
			np = (float64(*rows[i].AvgMonthlyRent) - minP) / math.Max(epsilon, maxP-minP)
		}

		if anyPrice {
			rows[i].Score = alpha*nd + (1-alpha)*np
		} else {
			rows[i].Score = nd
		}
	}

	// Stable sort keeps reference order for equal scores.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Score < rows[j].Score
	})
	return rows
}
