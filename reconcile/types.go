/*
Package reconcile provides the core record reconciliation and merge engine.

PURPOSE:
  This package contains the domain logic for deciding whether an incoming
  lead row corresponds to an existing property record, and for merging its
  scalar attributes and nested contact/phone/email groups into the store
  without duplicating data. Rows that cannot be reconciled are routed to an
  unmatched sink for manual follow-up.

KEY CONCEPTS IN THIS FILE (types.go):
  - ExternalRecord: One parsed row from a lead export (ephemeral)
  - ContactGroup:   A repeating contact block belonging to one record
  - Property:       The durable CRM record being reconciled against
  - Contact:        A contact owned by exactly one property
  - MatchReason:    Which strategy produced a match (or Unmatched)
  - MergeStats:     Per-record counts of what the merge actually changed

DESIGN PRINCIPLES:
  1. Idempotence: Re-running a merge with the same input changes nothing
  2. Fill-missing: A populated property field is never overwritten
  3. Containment: Merge side effects stay inside one property's subtree
  4. No silent drops: Every unmatched record lands in the sink

SEE ALSO:
  - matcher.go: Match strategy priority order
  - merge.go:   Scalar and contact-group merge semantics
  - batch.go:   The batch driver orchestrating a full run
*/
package reconcile

import "strings"

// =============================================================================
// MATCH REASON
// =============================================================================

// MatchReason records which strategy reconciled a record.
type MatchReason string

const (
	// MatchedByParcel is an exact APN/parcel identifier match.
	MatchedByParcel MatchReason = "apn"
	// MatchedByPropertyID is an exact external system id match.
	MatchedByPropertyID MatchReason = "property_id"
	// MatchedByAddress is a normalized-address containment match.
	MatchedByAddress MatchReason = "address"
	// Unmatched means no strategy succeeded.
	Unmatched MatchReason = "unmatched"
)

// =============================================================================
// EXTERNAL RECORD - one row from a lead export
// =============================================================================

// ExternalRecord is one parsed row from a third-party lead export.
// It is ephemeral: parsed fresh per run and discarded after the merge.
type ExternalRecord struct {
	RowNum int

	// Identifying keys.
	APNParcelID string
	PropertyID  string // external system id (e.g. DealMachine property_id)

	// Address.
	AddressLine1 string
	City         string
	State        string
	Zipcode      string

	// Scalar attributes. Nil means the export cell was empty or malformed.
	EstimatedValue      *int64
	EquityAmount        *int64
	EstimatedRepairCost *int64
	YearBuilt           *int
	TotalBedrooms       *int
	TotalBaths          *int
	PropertyType        string
	MarketStatus        string
	Owner1Name          string
	Owner2Name          string

	Contacts []ContactGroup
}

// FullAddress joins the address parts the same way the CRM stores its
// full-address projection: "line1, city, state zip".
func (r *ExternalRecord) FullAddress() string {
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(r.AddressLine1); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(r.City); s != "" {
		parts = append(parts, s)
	}
	tail := strings.TrimSpace(strings.TrimSpace(r.State) + " " + strings.TrimSpace(r.Zipcode))
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

// ContactGroup is a repeating contact block inside an ExternalRecord.
type ContactGroup struct {
	Name           string
	Flags          string // free-text tag string, e.g. "Likely Owner, Family"
	MailingAddress string
	Phones         []PhoneEntry
	Emails         []EmailEntry
}

// PhoneEntry is a phone value attached to a contact group.
// Number is raw until NormalizeRecord runs; afterwards it is 10 digits.
type PhoneEntry struct {
	Number  string
	Primary bool
	Type    string
}

// EmailEntry is an email value attached to a contact group.
type EmailEntry struct {
	Address string
	Primary bool
}

// =============================================================================
// TARGET ENTITIES - the durable CRM records
// =============================================================================

// Property is the durable record being reconciled against.
// FullAddress holds the normalized projection used for fuzzy matching.
type Property struct {
	ID int64

	APNParcelID string
	PropertyID  string

	AddressLine1 string
	City         string
	State        string
	Zipcode      string
	FullAddress  string // normalized, see NormalizeAddress

	EstimatedValue      *int64
	EquityAmount        *int64
	EstimatedRepairCost *int64
	YearBuilt           *int
	TotalBedrooms       *int
	TotalBaths          *int
	PropertyType        string
	MarketStatus        string
	Owner1Name          string
	Owner2Name          string
}

// Contact is owned by exactly one property. Its identity within that
// property is the normalized (lower-cased, trimmed) display name.
type Contact struct {
	ID             int64
	PropertyRef    int64
	Name           string
	Flags          string
	CurrentAddress string
}

// NameKey returns the contact's identity key within its property.
func (c Contact) NameKey() string {
	return NormalizeName(c.Name)
}

// =============================================================================
// MERGE STATS
// =============================================================================

// MergeStats counts what a single merge actually changed.
// A second run with identical input must report all zeros.
type MergeStats struct {
	FieldsUpdated int
	ContactsAdded int
	PhonesAdded   int
	EmailsAdded   int
}

// IsZero reports whether the merge was a complete no-op.
func (s MergeStats) IsZero() bool {
	return s == MergeStats{}
}
