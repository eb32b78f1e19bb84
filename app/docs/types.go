package docs

import (
	"slices"
)

// Record is a document reference scraped from a listing, before its content is fetched.
type Record struct {
	Title     string
	Link      string
	Published string // as rendered by the source, may be empty
}

// Identity is the hex encoded sha256 of a record's title and link.
type Identity string

type IdentitySet map[Identity]struct{}

func NewIdentitySet(ids ...Identity) IdentitySet {
	set := make(IdentitySet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

func (s IdentitySet) Has(id Identity) bool {
	_, ok := s[id]
	return ok
}

func (s IdentitySet) Add(id Identity) {
	s[id] = struct{}{}
}

func (s IdentitySet) Clone() IdentitySet {
	clone := make(IdentitySet, len(s))
	for id := range s {
		clone[id] = struct{}{}
	}
	return clone
}

// Sorted returns the identities in ascending order.
func (s IdentitySet) Sorted() []Identity {
	ids := make([]Identity, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Metadata is the display record parsed from a document's text.
type Metadata struct {
	DocNumber  string
	Title      string
	DriverInfo string
	Event      string
	Date       string
	Time       string
	Reason     string
}

type OutcomeStatus string

const (
	OutcomeFound         OutcomeStatus = "found"
	OutcomeEmpty         OutcomeStatus = "empty"
	OutcomeLayoutChanged OutcomeStatus = "layout_changed"
)

// Outcome is the result of extracting records from a listing.
// Empty and LayoutChanged are expected results, not failures.
type Outcome struct {
	Status  OutcomeStatus
	Records []Record
	Reason  string
}

func found(records []Record) Outcome {
	if len(records) == 0 {
		return Outcome{Status: OutcomeEmpty}
	}
	return Outcome{Status: OutcomeFound, Records: records}
}

func layoutChanged(reason string) Outcome {
	return Outcome{Status: OutcomeLayoutChanged, Reason: reason}
}

// Page is one rendered page of a document, JPEG encoded.
type Page struct {
	Number int // 1-based
	Name   string
	Data   []byte
}
