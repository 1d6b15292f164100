// Package domain models earthquake reports posted on social media and the
// rules that turn them into a deduplicated event store.
//
// # Data Source
//
// Posts come from a Reddit community (r/Earthquakes by default). The fetcher
// writes one CSV row per post with Spanish column headers; those headers are
// the contract with the downstream dashboard and are kept verbatim (see
// [PostColumns] and [DerivedColumns]).
//
// # Creation Time
//
// The creation signal (fecha_creacion) is either Unix epoch seconds, possibly
// with a fractional part ("1700000000.0"), or a free-text date. Epochs are
// interpreted as UTC; free-text dates are parsed with their wall clock kept and
// any zone dropped.
//
// Authors often quote the seismological agency's origin time in the body:
//
//	"... 2024-03-01 10:15:00 UTC"
//
// The first such mention, when it is a real instant, overrides the date and
// time columns. The creation signal is still kept for ordering. See
// [NormalizePost].
//
// # Extraction
//
// Each post is summarized by a text model as a bracketed 4-tuple:
//
//	[place, magnitude, latitude, longitude]
//
// Fields are trimmed and padded with "0" up to four. Any failure (model error
// or no bracket pair) yields [FailedFacts], whose place is [Undetermined].
// Non-decimal numbers coerce to 0. See [ParseFacts] and [Enrich].
//
// # Merge Rules
//
//   - Existing store records come before the batch, so they win title ties.
//   - Deduplication by title runs first, then the magnitude band (1, 15), both
//     bounds exclusive.
//   - The result is sorted by creation time, newest first; records with no
//     creation time sort last.
//   - Stores written by older versions are backfilled with derived columns
//     before merging. See [Backfill].
//
// Merging the same batch twice leaves the store unchanged.
package domain
