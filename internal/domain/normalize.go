package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layouts used for the date, time and composite timestamp columns.
const (
	DateLayout  = "2006-01-02"
	TimeLayout  = "15:04:05"
	StampLayout = "2006-01-02 15:04:05"
)

// maxEpochSeconds is 9999-12-31T23:59:59Z; larger epochs are treated as garbage.
const maxEpochSeconds = 253402300799

// bodyTimestampRe matches an author-asserted timestamp such as
// "2024-03-01 10:15:00 UTC" anywhere in the post body.
var bodyTimestampRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}\s\d{2}:\d{2}:\d{2})\s*UTC`)

// NormalizePosts resolves the creation date and time of every post, preserving order.
func NormalizePosts(posts []RawPost) []NormalizedPost {
	out := make([]NormalizedPost, len(posts))
	for i, p := range posts {
		out[i] = NormalizePost(p)
	}
	return out
}

// NormalizePost resolves a post's creation date and time. The creation signal
// (epoch or date string) is resolved first; a well-formed UTC timestamp in the
// body then overrides Date and Time. It never fails: unresolved posts carry
// empty Date and Time.
func NormalizePost(p RawPost) NormalizedPost {
	n := NormalizedPost{RawPost: p}

	if t, ok := ResolveCreated(p.CreatedRaw); ok {
		n.Posted = t
		n.Date = t.Format(DateLayout)
		n.Time = t.Format(TimeLayout)
	}

	if t, ok := bodyTimestamp(p.Body); ok {
		n.Date = t.Format(DateLayout)
		n.Time = t.Format(TimeLayout)
	}

	return n
}

// ResolveCreated interprets a raw creation signal. Numeric values are Unix
// epoch seconds in UTC; anything else goes through free-form date parsing.
// The result is timezone-naive (wall clock kept, location set to UTC).
func ResolveCreated(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return fromEpoch(v)
	}

	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return naive(t), true
}

func fromEpoch(v float64) (time.Time, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > maxEpochSeconds {
		return time.Time{}, false
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), true
}

// bodyTimestamp returns the first "YYYY-MM-DD HH:MM:SS UTC" mention in body.
// A mention that matches the shape but is not a real instant is ignored.
func bodyTimestamp(body string) (time.Time, bool) {
	m := bodyTimestampRe.FindStringSubmatch(body)
	if len(m) != 2 {
		return time.Time{}, false
	}
	// The separator may be any whitespace character; the layout needs a space.
	s := m[1][:10] + " " + m[1][11:]
	t, err := time.Parse(StampLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// naive drops the zone of t while keeping its wall clock.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
