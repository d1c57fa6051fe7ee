// Package listing owns the normalized, internal shape of a priced item:
// the record the stash processor builds and the column store persists.
package listing

import "time"

// Price is the priced side of a Listing. Normalized is reserved for a
// future chaos-equivalent conversion and is always zero today; this
// pipeline does not do realtime currency normalization.
type Price struct {
	Normalized     float64
	ListedPrice    float64
	ListedCurrency Currency
}

// Listing is the unit of persisted record: one priced item pulled from a
// stash change. Mods preserve upstream ordering — they are display order,
// not a set.
type Listing struct {
	ItemID       string
	Name         string
	League       string
	Price        Price
	ImplicitMods []string
	ExplicitMods []string
	CreatedAt    time.Time
}
