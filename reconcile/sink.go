package reconcile

import (
	"encoding/json"
	"io"

	"github.com/google/uuid"
)

// =============================================================================
// UNRECONCILED SINK
// =============================================================================

// UnmatchedContact is the serializable snapshot of one contact group.
type UnmatchedContact struct {
	Name   string   `json:"name"`
	Phones []string `json:"phones,omitempty"`
	Emails []string `json:"emails,omitempty"`
}

// UnmatchedRecord is the serializable descriptor of a record that failed
// reconciliation, kept for manual follow-up.
type UnmatchedRecord struct {
	ID         string             `json:"id"`
	RowNum     int                `json:"row"`
	APN        string             `json:"apn,omitempty"`
	PropertyID string             `json:"property_id,omitempty"`
	Address    string             `json:"address,omitempty"`
	Reason     string             `json:"reason"`
	Contacts   []UnmatchedContact `json:"contacts,omitempty"`
}

// Sink captures records that fail matching (or whose merge failed) so they
// are never silently dropped. Capture cannot fail; a record is counted even
// if parts of its snapshot are unusable.
type Sink struct {
	records []UnmatchedRecord
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Capture appends a descriptor for rec. Called exactly once per
// unreconciled record.
func (s *Sink) Capture(rec *ExternalRecord, reason string) UnmatchedRecord {
	desc := UnmatchedRecord{
		ID:         uuid.NewString(),
		RowNum:     rec.RowNum,
		APN:        rec.APNParcelID,
		PropertyID: rec.PropertyID,
		Address:    rec.FullAddress(),
		Reason:     reason,
	}
	for _, g := range rec.Contacts {
		if g.Name == "" {
			continue
		}
		uc := UnmatchedContact{Name: g.Name}
		for _, ph := range g.Phones {
			if ph.Number != "" {
				uc.Phones = append(uc.Phones, ph.Number)
			}
		}
		for _, em := range g.Emails {
			if em.Address != "" {
				uc.Emails = append(uc.Emails, em.Address)
			}
		}
		desc.Contacts = append(desc.Contacts, uc)
	}
	s.records = append(s.records, desc)
	return desc
}

// Len returns how many records the sink holds.
func (s *Sink) Len() int {
	return len(s.records)
}

// Records returns the captured descriptors in capture order.
func (s *Sink) Records() []UnmatchedRecord {
	out := make([]UnmatchedRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Export writes the captured descriptors as an indented JSON document,
// matching the unmatched_import_data.json handoff format.
func (s *Sink) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.records)
}
