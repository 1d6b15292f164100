package domain

import (
	"context"
	"fmt"
	"strings"
)

// Undetermined is the location sentinel for posts where no place could be found.
const Undetermined = "undetermined"

// TextModel is a remote text-understanding model.
type TextModel interface {
	// Generate returns the model's free-text answer to prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Facts is the raw 4-tuple returned by the model, still as text.
type Facts struct {
	Location  string
	Magnitude string
	Latitude  string
	Longitude string
}

// FailedFacts substitutes for any extraction that errored or could not be parsed.
var FailedFacts = Facts{Location: Undetermined, Magnitude: "0", Latitude: "0", Longitude: "0"}

// IsUndetermined reports whether the model found no usable location.
func (f Facts) IsUndetermined() bool {
	return f.Location == Undetermined
}

// BuildPrompt renders the extraction instructions for one post.
func BuildPrompt(title, body string) string {
	var b strings.Builder
	b.WriteString("Example: Text: 'A magnitude 6.3 earthquake hit Lima, Peru.' -> [Lima, 6.3, -12.0464, -77.0428]\n\n")
	b.WriteString("Response format: [place, magnitude (decimal), latitude (decimal), longitude (decimal)]. ")
	fmt.Fprintf(&b, "Extract from the following text the city or country where the seismic event happened, in any language: %s. ", body)
	b.WriteString("Prefer the city over the country when both can be determined. ")
	b.WriteString("If no place is stated, give a plausible nearby city rather than declaring it unknown. ")
	b.WriteString("Give the decimal latitude and longitude of the place. ")
	b.WriteString("Use '.' as the decimal separator for magnitude, latitude and longitude. ")
	fmt.Fprintf(&b, "If the text has no place, look in the title: %s. ", title)
	fmt.Fprintf(&b, "If neither the text nor the title has a place, answer '%s' for the place and 0 for the magnitude. ", Undetermined)
	b.WriteString("If several places appear, choose the most relevant one. ")
	b.WriteString("Return exactly one bracketed list with the values in order, without explanations.")
	return b.String()
}

// ParseFacts pulls the bracketed list out of a model response. Fields are
// trimmed and padded with "0" up to four. It returns false when the response
// carries no bracket pair.
func ParseFacts(response string) (Facts, bool) {
	open := strings.Index(response, "[")
	if open < 0 || !strings.Contains(response, "]") {
		return FailedFacts, false
	}

	inner := response[open+1:]
	if end := strings.Index(inner, "]"); end >= 0 {
		inner = inner[:end]
	}

	parts := strings.Split(inner, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for len(parts) < 4 {
		parts = append(parts, "0")
	}

	return Facts{
		Location:  parts[0],
		Magnitude: parts[1],
		Latitude:  parts[2],
		Longitude: parts[3],
	}, true
}

// Enrich attaches extracted facts to a post. Numeric fields that are not
// decimals become 0.
func Enrich(post NormalizedPost, facts Facts) ExtractedEvent {
	ev := ExtractedEvent{
		NormalizedPost: post,
		Location:       facts.Location,
		Magnitude:      parseFloatOrZero(facts.Magnitude),
		Latitude:       parseFloatOrZero(facts.Latitude),
		Longitude:      parseFloatOrZero(facts.Longitude),
	}
	if !post.Posted.IsZero() {
		ev.Stamp = post.Posted.Format(StampLayout)
	}
	return ev
}

// DropUndetermined removes events whose location is the Undetermined sentinel.
func DropUndetermined(events []ExtractedEvent) []ExtractedEvent {
	out := make([]ExtractedEvent, 0, len(events))
	for _, e := range events {
		if e.Location == Undetermined {
			continue
		}
		out = append(out, e)
	}
	return out
}
