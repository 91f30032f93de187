package models

import "time"

// WatchedMovie is a row in a viewer's permanent watched history. The full
// record is denormalized in so the account page can render without touching
// the catalog again.
type WatchedMovie struct {
	AccountID string    `json:"accountId"`
	Movie     Movie     `json:"movie"`
	WatchedAt time.Time `json:"watchedAt"`
}

// WatchlistItem is a movie a viewer has saved for later. Saved movies count
// as "seen" for recommendation dedup just like watched ones.
type WatchlistItem struct {
	AccountID string    `json:"accountId"`
	Movie     Movie     `json:"movie"`
	AddedAt   time.Time `json:"addedAt"`
}
