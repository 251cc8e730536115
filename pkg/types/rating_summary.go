package types

// RatingSummary is the running aggregate a service keeps over its
// completed-booking ratings, stored as two plain columns so the fold
// can happen in SQL.
type RatingSummary struct {
	Average float64 `json:"average" gorm:"column:rating_average;not null;default:0"`
	Count   int     `json:"count" gorm:"column:rating_count;not null;default:0"`
}
