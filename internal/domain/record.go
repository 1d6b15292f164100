package domain

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// PostFromFields builds a RawPost from one row of the post file.
func PostFromFields(fields map[string]string) RawPost {
	return RawPost{
		ID:         fields[ColID],
		Title:      fields[ColTitle],
		Body:       fields[ColBody],
		Author:     fields[ColAuthor],
		CreatedRaw: fields[ColCreated],
		Fields:     fields,
	}
}

// EventFromFields rebuilds a stored event from one row of the store file.
// Numeric columns that fail to parse coerce to 0.
func EventFromFields(fields map[string]string) ExtractedEvent {
	post := PostFromFields(fields)
	posted, _ := ResolveCreated(post.CreatedRaw)

	return ExtractedEvent{
		NormalizedPost: NormalizedPost{
			RawPost: post,
			Posted:  posted,
			Date:    strings.TrimSpace(fields[ColDate]),
			Time:    strings.TrimSpace(fields[ColTime]),
		},
		Location:  fields[ColLocation],
		Magnitude: parseFloatOrZero(fields[ColMagnitude]),
		Latitude:  parseFloatOrZero(fields[ColLatitude]),
		Longitude: parseFloatOrZero(fields[ColLongitude]),
		Stamp:     strings.TrimSpace(fields[ColStamp]),
	}
}

// Row renders the event as a column-to-value map for persistence.
// fecha_creacion is rewritten in the store's timestamp layout.
func (e ExtractedEvent) Row() map[string]string {
	row := make(map[string]string, len(e.Fields)+len(DerivedColumns))
	for k, v := range e.Fields {
		row[k] = v
	}
	row[ColTitle] = e.Title
	row[ColID] = e.ID
	row[ColAuthor] = e.Author
	row[ColBody] = e.Body
	row[ColCreated] = ""
	if !e.Posted.IsZero() {
		row[ColCreated] = e.Posted.Format(StampLayout)
	}
	row[ColDate] = e.Date
	row[ColTime] = e.Time
	row[ColLocation] = e.Location
	row[ColMagnitude] = formatFloat(e.Magnitude)
	row[ColLatitude] = formatFloat(e.Latitude)
	row[ColLongitude] = formatFloat(e.Longitude)
	row[ColStamp] = e.Stamp
	return row
}

// StoreColumns returns the header for a fresh store or snapshot holding events:
// the post columns, the derived columns, then any extra source columns sorted
// by name.
func StoreColumns(events []ExtractedEvent) []string {
	return appendMissingColumns(nil, events)
}

func appendMissingColumns(columns []string, events []ExtractedEvent) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, 0, len(columns)+len(PostColumns)+len(DerivedColumns))
	for _, c := range columns {
		seen[c] = true
		out = append(out, c)
	}
	for _, group := range [][]string{PostColumns, DerivedColumns} {
		for _, c := range group {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}

	var extra []string
	for _, e := range events {
		for k := range e.Fields {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
// NaN and infinities also map to 0.
func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
