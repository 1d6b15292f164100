package domain

import "sort"

// Valid magnitude band, both bounds exclusive.
const (
	MinMagnitude = 1.0
	MaxMagnitude = 15.0
)

// ValidMagnitude reports whether m lies strictly inside the accepted band.
func ValidMagnitude(m float64) bool {
	return m > MinMagnitude && m < MaxMagnitude
}

// MergeResult is the outcome of merging a batch into the store.
type MergeResult struct {
	Store EventStore
	// Added holds batch events that made it into the store.
	Added []ExtractedEvent
	// Duplicates counts records dropped because their title was already present.
	Duplicates int
	// OutOfRange counts records dropped by the magnitude band.
	OutOfRange int
}

// Backfill adds derived columns missing from an older store. Date, time and
// the composite stamp are derived from each record's creation timestamp;
// numeric columns are zero-filled and the location is left empty.
func Backfill(store *EventStore) {
	for _, col := range DerivedColumns {
		if store.HasColumn(col) {
			continue
		}
		for i := range store.Events {
			backfillColumn(&store.Events[i], col)
		}
		store.Columns = append(store.Columns, col)
	}
}

func backfillColumn(e *ExtractedEvent, col string) {
	var derived string
	switch col {
	case ColDate:
		if !e.Posted.IsZero() {
			derived = e.Posted.Format(DateLayout)
		}
		e.Date = derived
	case ColTime:
		if !e.Posted.IsZero() {
			derived = e.Posted.Format(TimeLayout)
		}
		e.Time = derived
	case ColStamp:
		if !e.Posted.IsZero() {
			derived = e.Posted.Format(StampLayout)
		}
		e.Stamp = derived
	case ColMagnitude:
		e.Magnitude = 0
	case ColLatitude:
		e.Latitude = 0
	case ColLongitude:
		e.Longitude = 0
	case ColLocation:
		e.Location = ""
	}
}

// Merge combines the existing store (nil on first run) with a freshly
// extracted batch. Existing records come first so they win title ties;
// duplicates are dropped, then records outside the magnitude band, and the
// result is sorted by creation timestamp, newest first. Records with no
// timestamp sort last. Neither input is modified.
func Merge(existing *EventStore, batch []ExtractedEvent) MergeResult {
	var (
		columns  []string
		combined []ExtractedEvent
	)
	if existing != nil {
		prior := EventStore{
			Columns: append([]string(nil), existing.Columns...),
			Events:  append([]ExtractedEvent(nil), existing.Events...),
		}
		Backfill(&prior)
		columns = prior.Columns
		combined = prior.Events
	}
	fromStore := len(combined)
	combined = append(combined, batch...)

	var res MergeResult
	seen := make(map[string]bool, len(combined))
	kept := make([]ExtractedEvent, 0, len(combined))
	for i, e := range combined {
		if seen[e.Title] {
			res.Duplicates++
			continue
		}
		seen[e.Title] = true

		if !ValidMagnitude(e.Magnitude) {
			res.OutOfRange++
			continue
		}
		kept = append(kept, e)
		if i >= fromStore {
			res.Added = append(res.Added, e)
		}
	}

	sortNewestFirst(kept)

	res.Store = EventStore{
		Columns: appendMissingColumns(columns, kept),
		Events:  kept,
	}
	return res
}

func sortNewestFirst(events []ExtractedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Posted, events[j].Posted
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.After(b)
		}
	})
}
