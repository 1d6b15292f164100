// Command validate checks an event store file against the invariants every
// merge guarantees: a complete header, unique titles, magnitudes inside the
// accepted band, determined locations, consistent derived columns and
// newest-first ordering. With -snapshot it also checks that every valid event
// of the last batch reached the store.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -store data/Earthquakes_posts_new.csv \
//	  -snapshot data/terremotos_procesados.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/quake-post-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/quake-post-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	storePath := flag.String("store", "", "path to the event store CSV")
	snapshotPath := flag.String("snapshot", "", "optional path to the batch snapshot CSV")
	flag.Parse()

	if *storePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*storePath, *snapshotPath); code != 0 {
		os.Exit(code)
	}
}

func run(storePath, snapshotPath string) int {
	ctx := context.Background()

	fmt.Println("=== Event Store Validation ===")
	fmt.Println()

	store, err := csvfile.NewStoreFile(storePath).LoadStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load store: %v\n", err)
		return 1
	}
	if store == nil {
		fmt.Fprintf(os.Stderr, "FATAL: store %s does not exist\n", storePath)
		return 1
	}

	phases := []*phase{
		validateSchema(store),
		validateUniqueness(store),
		validateFacts(store),
		validateDerivedColumns(store),
		validateOrdering(store),
	}

	snapshotRows := 0
	if snapshotPath != "" {
		// The snapshot shares the store's layout, so the store reader parses it.
		snapshot, err := csvfile.NewStoreFile(snapshotPath).LoadStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load snapshot: %v\n", err)
			return 1
		}
		if snapshot != nil {
			snapshotRows = len(snapshot.Events)
			phases = append(phases, validateSnapshotCoverage(snapshot, store))
		}
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d store, %d snapshot\n", len(store.Events), snapshotRows)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// line is the CSV line number of the i-th event, counting the header.
func line(i int) int { return i + 2 }

// ── Phase 1: Schema ──

func validateSchema(store *domain.EventStore) *phase {
	p := &phase{name: "Phase 1: Schema (required columns)"}

	required := append([]string{domain.ColTitle, domain.ColID, domain.ColCreated, domain.ColBody}, domain.DerivedColumns...)
	for _, col := range required {
		if !store.HasColumn(col) {
			p.errorf("header missing column %q", col)
		}
	}

	seen := make(map[string]bool, len(store.Columns))
	for _, col := range store.Columns {
		if seen[col] {
			p.errorf("header repeats column %q", col)
		}
		seen[col] = true
	}
	return p
}

// ── Phase 2: Uniqueness ──

func validateUniqueness(store *domain.EventStore) *phase {
	p := &phase{name: "Phase 2: Uniqueness (one record per title)"}

	first := make(map[string]int, len(store.Events))
	for i, e := range store.Events {
		if prev, ok := first[e.Title]; ok {
			p.errorf("line %d: title %q already stored on line %d", line(i), e.Title, line(prev))
			continue
		}
		first[e.Title] = i
	}
	return p
}

// ── Phase 3: Extracted facts ──

func validateFacts(store *domain.EventStore) *phase {
	p := &phase{name: "Phase 3: Facts (magnitude band, location)"}

	for i, e := range store.Events {
		if !domain.ValidMagnitude(e.Magnitude) {
			p.errorf("line %d: magnitude %v outside (%v, %v)", line(i), e.Magnitude, domain.MinMagnitude, domain.MaxMagnitude)
		}
		loc := strings.TrimSpace(e.Location)
		switch {
		case loc == "":
			p.errorf("line %d: empty location", line(i))
		case strings.EqualFold(loc, domain.Undetermined):
			p.errorf("line %d: location is %q", line(i), domain.Undetermined)
		}
	}
	return p
}

// ── Phase 4: Derived columns ──

func validateDerivedColumns(store *domain.EventStore) *phase {
	p := &phase{name: "Phase 4: Derived columns (date, time, stamp)"}

	for i, e := range store.Events {
		if (e.Date == "") != (e.Time == "") {
			p.errorf("line %d: date %q and time %q must both be set or both be empty", line(i), e.Date, e.Time)
		}
		if e.Date != "" {
			if _, err := time.Parse(domain.DateLayout, e.Date); err != nil {
				p.errorf("line %d: date %q is not YYYY-MM-DD", line(i), e.Date)
			}
		}
		if e.Time != "" {
			if _, err := time.Parse(domain.TimeLayout, e.Time); err != nil {
				p.errorf("line %d: time %q is not HH:MM:SS", line(i), e.Time)
			}
		}

		want := ""
		if !e.Posted.IsZero() {
			want = e.Posted.Format(domain.StampLayout)
		}
		if e.Stamp != want {
			p.errorf("line %d: stamp %q does not match creation time %q", line(i), e.Stamp, want)
		}
	}
	return p
}

// ── Phase 5: Ordering ──

func validateOrdering(store *domain.EventStore) *phase {
	p := &phase{name: "Phase 5: Ordering (newest first)"}

	var prev time.Time
	seenUnresolved := false
	for i, e := range store.Events {
		if e.Posted.IsZero() {
			seenUnresolved = true
			continue
		}
		if seenUnresolved {
			p.errorf("line %d: dated record follows a record without a creation time", line(i))
		}
		if !prev.IsZero() && e.Posted.After(prev) {
			p.errorf("line %d: %s is newer than the record above (%s)",
				line(i), e.Posted.Format(domain.StampLayout), prev.Format(domain.StampLayout))
		}
		prev = e.Posted
	}
	return p
}

// ── Phase 6: Snapshot coverage ──

func validateSnapshotCoverage(snapshot, store *domain.EventStore) *phase {
	p := &phase{name: "Phase 6: Snapshot coverage (batch in store)"}

	stored := make(map[string]bool, len(store.Events))
	for _, e := range store.Events {
		stored[e.Title] = true
	}
	for i, e := range snapshot.Events {
		if !domain.ValidMagnitude(e.Magnitude) {
			continue
		}
		if !stored[e.Title] {
			p.errorf("snapshot line %d: %q (magnitude %v) is missing from the store", line(i), e.Title, e.Magnitude)
		}
	}
	return p
}
