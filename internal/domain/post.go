package domain

import "time"

// Column names shared by the post file, the snapshot and the event store.
// The Spanish headers are the on-disk contract with the fetcher and with the
// dashboard that reads the store, so they are kept verbatim.
const (
	ColTitle   = "titulo"
	ColID      = "id"
	ColAuthor  = "autor"
	ColCreated = "fecha_creacion"
	ColBody    = "texto_post"

	ColDate      = "fecha_crea"
	ColTime      = "hora_crea"
	ColLocation  = "ciudad_o_pais"
	ColMagnitude = "magnitud"
	ColLatitude  = "latitud"
	ColLongitude = "longitud"
	ColStamp     = "hora"
)

// PostColumns is the column order written by the post fetcher.
var PostColumns = []string{
	ColTitle,
	ColID,
	"nombre_completo",
	"url",
	"enlace_interno_reddit",
	"subreddit",
	ColAuthor,
	"puntuacion",
	"ratio_votos_positivos",
	"num_comentarios",
	ColCreated,
	"link_flair_text",
	"editado",
	"media",
	"thumbnail",
	"num_crossposts",
	"view_count",
	"es_texto",
	"nsfw",
	"stickied",
	"spoiler",
	"locked",
	"distinguished",
	ColBody,
}

// DerivedColumns are appended to the post columns by normalization and extraction.
var DerivedColumns = []string{
	ColDate,
	ColTime,
	ColLocation,
	ColMagnitude,
	ColLatitude,
	ColLongitude,
	ColStamp,
}

// RawPost is one fetched social-media post. Fields holds every source column
// verbatim so post metadata survives into the store.
type RawPost struct {
	ID         string
	Title      string
	Body       string
	Author     string
	CreatedRaw string // epoch seconds or a free-text date
	Fields     map[string]string
}

// NormalizedPost is a RawPost with its creation time resolved.
type NormalizedPost struct {
	RawPost

	// Posted is resolved from CreatedRaw. Zero when unresolved.
	Posted time.Time
	// Date (YYYY-MM-DD) and Time (HH:MM:SS) of the event. An in-body UTC
	// timestamp overrides Posted here. Empty when unresolved.
	Date string
	Time string
}

// Resolved reports whether a creation date was found.
func (p NormalizedPost) Resolved() bool {
	return p.Date != ""
}

// ExtractedEvent is a NormalizedPost enriched with the facts the model extracted.
type ExtractedEvent struct {
	NormalizedPost

	Location  string
	Magnitude float64
	Latitude  float64
	Longitude float64
	// Stamp is Posted rendered as "YYYY-MM-DD HH:MM:SS", empty when unresolved.
	Stamp string
}

// EventStore is the persisted, deduplicated event collection.
type EventStore struct {
	// Columns is the header in persisted order.
	Columns []string
	Events  []ExtractedEvent
}

// HasColumn reports whether the store header carries the named column.
func (s *EventStore) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}
