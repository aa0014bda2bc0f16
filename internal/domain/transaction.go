package domain

import "time"

// TransactionRecord is a single government-reported rental transaction.
// ID is the upstream identifier when the source supplies one, otherwise
// a composite of block, street, approval month and flat type so that
// repeated syncs of the same record collapse onto one row.
type TransactionRecord struct {
	ID            string
	ApprovalMonth string
	Town          string
	Block         string
	StreetName    string
	FlatType      string
	MonthlyRent   int
	Source        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TownStatistic is a read-time aggregate over transaction records.
// It is recomputed on every query, never cached.
type TownStatistic struct {
	ListingCount   int
	AvgMonthlyRent int
	Available      bool
}

// TownSummary is one row of the towns-by-popularity listing.
type TownSummary struct {
	Town           string
	ListingCount   int
	AvgMonthlyRent int
}

// GeoPoint is an ephemeral latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TownCentroid is externally supplied reference data for one
// administrative town. Read-only to the core.
type TownCentroid struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// RankedTown is one candidate of a recommendation response.
// AvgMonthlyRent is nil when the store has no price data for the town.
type RankedTown struct {
	Name           string  `json:"name"`
	DistanceMeters float64 `json:"distanceMeters"`
	AvgMonthlyRent *int    `json:"avgMonthlyRent"`
	ListingCount   int     `json:"listingCount"`
	Score          float64 `json:"score"`
}

// NearestTown names the reference town closest to a computed center.
type NearestTown struct {
	Name           string  `json:"name"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// Recommendation is the outbound result of a between-points query.
type Recommendation struct {
	Center      GeoPoint     `json:"center"`
	NearestTown NearestTown  `json:"nearestTown"`
	RankedTowns []RankedTown `json:"rankedTowns"`
}

// SyncStatus enumerates outcomes recorded after each sync attempt.
type SyncStatus string

const (
	SyncOperational SyncStatus = "operational"
	SyncFailed      SyncStatus = "error"
)

// FlatTypes is the fixed category set rendered by downstream consumers.
// Grouped statistics carry an explicit unavailable entry for every
// type missing in a town, never a hole.
var FlatTypes = []string{
	"1-ROOM",
	"2-ROOM",
	"3-ROOM",
	"4-ROOM",
	"5-ROOM",
	"EXECUTIVE",
}
