package reconcile

import (
	"context"
	"fmt"
)

// =============================================================================
// MERGE ENGINE
// =============================================================================

// Merger performs the idempotent upsert of a matched record into its target
// property: scalar fields with fill-missing semantics, then the nested
// contact -> phone/email groups. All side effects stay inside the target
// property's subtree.
type Merger struct {
	Store Store
}

// Merge folds rec into target and persists the result through the store.
// It mutates target in place so the in-memory index stays consistent with
// what was written. On error the record's remaining work is abandoned; the
// stats returned cover whatever completed before the failure.
func (m *Merger) Merge(ctx context.Context, rec *ExternalRecord, target *Property) (MergeStats, error) {
	var stats MergeStats

	// Scalar fields: fill-missing only. A populated target field is never
	// overwritten, whatever the export says.
	changed := mergeScalars(rec, target)
	if changed > 0 || target.ID == 0 {
		if err := m.Store.UpsertEntity(ctx, target); err != nil {
			return stats, fmt.Errorf("upsert property: %w", err)
		}
		stats.FieldsUpdated = changed
	}

	for i := range rec.Contacts {
		g := &rec.Contacts[i]
		if NormalizeName(g.Name) == "" {
			continue
		}

		contactID, created, err := m.Store.FindOrCreateContact(ctx, target.ID, Contact{
			PropertyRef:    target.ID,
			Name:           g.Name,
			Flags:          g.Flags,
			CurrentAddress: g.MailingAddress,
		})
		if err != nil {
			return stats, fmt.Errorf("contact %q: %w", g.Name, err)
		}
		if created {
			stats.ContactsAdded++
		}

		for _, ph := range g.Phones {
			if ph.Number == "" {
				continue
			}
			added, err := m.Store.AddPhoneIfAbsent(ctx, contactID, ph)
			if err != nil {
				return stats, fmt.Errorf("contact %q phone %s: %w", g.Name, ph.Number, err)
			}
			if added {
				stats.PhonesAdded++
			}
		}

		for _, em := range g.Emails {
			if em.Address == "" {
				continue
			}
			added, err := m.Store.AddEmailIfAbsent(ctx, contactID, em)
			if err != nil {
				return stats, fmt.Errorf("contact %q email %s: %w", g.Name, em.Address, err)
			}
			if added {
				stats.EmailsAdded++
			}
		}
	}

	return stats, nil
}

// mergeScalars applies fill-missing semantics for every mapped attribute
// and returns how many fields were actually set. No attribute is currently
// marked always-refresh; if one ever is, it would overwrite here.
func mergeScalars(rec *ExternalRecord, target *Property) int {
	n := 0
	fillString(&target.APNParcelID, rec.APNParcelID, &n)
	fillString(&target.PropertyID, rec.PropertyID, &n)
	fillInt64(&target.EstimatedValue, rec.EstimatedValue, &n)
	fillInt64(&target.EquityAmount, rec.EquityAmount, &n)
	fillInt64(&target.EstimatedRepairCost, rec.EstimatedRepairCost, &n)
	fillInt(&target.YearBuilt, rec.YearBuilt, &n)
	fillInt(&target.TotalBedrooms, rec.TotalBedrooms, &n)
	fillInt(&target.TotalBaths, rec.TotalBaths, &n)
	fillString(&target.PropertyType, rec.PropertyType, &n)
	fillString(&target.MarketStatus, rec.MarketStatus, &n)
	fillString(&target.Owner1Name, rec.Owner1Name, &n)
	fillString(&target.Owner2Name, rec.Owner2Name, &n)
	return n
}

// NewPropertyFromRecord builds a fresh property from an unmatched record.
// Used by the driver in create-missing mode; the snapshot address fields
// and normalized projection are set so the new entity is index-ready.
func NewPropertyFromRecord(rec *ExternalRecord) *Property {
	p := &Property{
		AddressLine1: rec.AddressLine1,
		City:         rec.City,
		State:        rec.State,
		Zipcode:      rec.Zipcode,
		FullAddress:  NormalizeAddress(rec.FullAddress()),
	}
	mergeScalars(rec, p)
	return p
}

func fillString(dst *string, src string, n *int) {
	if *dst == "" && src != "" {
		*dst = src
		*n++
	}
}

func fillInt64(dst **int64, src *int64, n *int) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
		*n++
	}
}

func fillInt(dst **int, src *int, n *int) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
		*n++
	}
}
