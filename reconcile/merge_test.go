package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/123Soldcash/crm-123drive-v2/reconcile"
	"github.com/123Soldcash/crm-123drive-v2/reconcile/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Note: fixtureProperties is defined in matcher_test.go

func i64(v int64) *int64 { return &v }
func iptr(v int) *int    { return &v }

func janeDoeRecord() *reconcile.ExternalRecord {
	return &reconcile.ExternalRecord{
		RowNum:         1,
		APNParcelID:    "504128-01-1234",
		AddressLine1:   "6919 SE Paul Revere Ct",
		City:           "Hobe Sound",
		State:          "FL",
		Zipcode:        "33455",
		EstimatedValue: i64(455000),
		YearBuilt:      iptr(1987),
		Contacts: []reconcile.ContactGroup{{
			Name:   "Jane Doe",
			Flags:  "Likely Owner",
			Phones: []reconcile.PhoneEntry{{Number: "5616992623", Primary: true}},
			Emails: []reconcile.EmailEntry{{Address: "jane@example.com", Primary: true}},
		}},
	}
}

// =============================================================================
// SCALAR MERGE TESTS
// =============================================================================

func TestMerge_FillsMissingScalarsOnly(t *testing.T) {
	// GIVEN: A target with owner set and estimated value empty
	// WHEN: Merging a record carrying both
	// THEN: The empty field fills, the populated field survives untouched

	ctx := context.Background()
	mem := store.NewMemory()
	target := mem.Seed(reconcile.Property{
		APNParcelID: "504128-01-1234",
		Owner1Name:  "Jane Doe",
	})

	rec := janeDoeRecord()
	rec.Owner1Name = "SOMEONE ELSE"
	rec.Contacts = nil

	merger := &reconcile.Merger{Store: mem}
	stats, err := merger.Merge(ctx, rec, target)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FieldsUpdated) // estimatedValue, yearBuilt
	stored := mem.Property(target.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "Jane Doe", stored.Owner1Name, "populated field must never be overwritten")
	require.NotNil(t, stored.EstimatedValue)
	assert.Equal(t, int64(455000), *stored.EstimatedValue)
	require.NotNil(t, stored.YearBuilt)
	assert.Equal(t, 1987, *stored.YearBuilt)
}

func TestMerge_NoChanges_NoUpsert(t *testing.T) {
	// A record adding nothing must report zero field updates.
	ctx := context.Background()
	mem := store.NewMemory()
	target := mem.Seed(reconcile.Property{
		APNParcelID:    "504128-01-1234",
		EstimatedValue: i64(455000),
		YearBuilt:      iptr(1987),
	})

	rec := janeDoeRecord()
	rec.Contacts = nil

	merger := &reconcile.Merger{Store: mem}
	stats, err := merger.Merge(ctx, rec, target)
	require.NoError(t, err)
	assert.Zero(t, stats.FieldsUpdated)
}

// =============================================================================
// CONTACT GROUP MERGE TESTS
// =============================================================================

func TestMerge_CreatesContactWithValues(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	target := mem.Seed(reconcile.Property{APNParcelID: "504128-01-1234"})

	merger := &reconcile.Merger{Store: mem}
	stats, err := merger.Merge(ctx, janeDoeRecord(), target)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ContactsAdded)
	assert.Equal(t, 1, stats.PhonesAdded)
	assert.Equal(t, 1, stats.EmailsAdded)

	contacts := mem.ContactsFor(target.ID)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Jane Doe", contacts[0].Name)
	assert.Equal(t, target.ID, contacts[0].PropertyRef)

	phones := mem.PhonesFor(contacts[0].ID)
	require.Len(t, phones, 1)
	assert.Equal(t, "5616992623", phones[0].Number)
	assert.True(t, phones[0].Primary)
}

func TestMerge_ContactReuseIsCaseInsensitive(t *testing.T) {
	// GIVEN: "Jane Doe" already merged
	// WHEN: A later record carries "JANE DOE" with a new phone
	// THEN: No second contact; the phone lands on the existing one

	ctx := context.Background()
	mem := store.NewMemory()
	target := mem.Seed(reconcile.Property{APNParcelID: "504128-01-1234"})
	merger := &reconcile.Merger{Store: mem}

	_, err := merger.Merge(ctx, janeDoeRecord(), target)
	require.NoError(t, err)

	second := janeDoeRecord()
	second.Contacts[0].Name = "JANE DOE"
	second.Contacts[0].Phones = []reconcile.PhoneEntry{{Number: "5616992624"}}
	second.Contacts[0].Emails = nil

	stats, err := merger.Merge(ctx, second, target)
	require.NoError(t, err)

	assert.Zero(t, stats.ContactsAdded)
	assert.Equal(t, 1, stats.PhonesAdded)

	contacts := mem.ContactsFor(target.ID)
	require.Len(t, contacts, 1)
	assert.Len(t, mem.PhonesFor(contacts[0].ID), 2)
}

func TestMerge_SkipsNamelessContactGroups(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	target := mem.Seed(reconcile.Property{APNParcelID: "504128-01-1234"})

	rec := janeDoeRecord()
	rec.Contacts = append(rec.Contacts, reconcile.ContactGroup{
		Name:   "   ",
		Phones: []reconcile.PhoneEntry{{Number: "5550001111"}},
	})

	merger := &reconcile.Merger{Store: mem}
	stats, err := merger.Merge(ctx, rec, target)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ContactsAdded)
	assert.Len(t, mem.ContactsFor(target.ID), 1)
}

// =============================================================================
// IDEMPOTENCE TESTS
// =============================================================================

func TestMerge_SecondRunIsNoOp(t *testing.T) {
	// GIVEN: A record fully merged once
	// WHEN: Merging the identical record again
	// THEN: Every stat is zero and the store is unchanged

	ctx := context.Background()
	mem := store.NewMemory()
	target := mem.Seed(reconcile.Property{APNParcelID: "504128-01-1234"})
	merger := &reconcile.Merger{Store: mem}

	_, err := merger.Merge(ctx, janeDoeRecord(), target)
	require.NoError(t, err)

	stats, err := merger.Merge(ctx, janeDoeRecord(), target)
	require.NoError(t, err)
	assert.True(t, stats.IsZero(), "second run changed something: %+v", stats)

	contacts := mem.ContactsFor(target.ID)
	require.Len(t, contacts, 1)
	assert.Len(t, mem.PhonesFor(contacts[0].ID), 1)
	assert.Len(t, mem.EmailsFor(contacts[0].ID), 1)
}

// =============================================================================
// NEW PROPERTY CONSTRUCTION
// =============================================================================

func TestNewPropertyFromRecord(t *testing.T) {
	rec := janeDoeRecord()
	p := reconcile.NewPropertyFromRecord(rec)

	assert.Zero(t, p.ID)
	assert.Equal(t, "504128-01-1234", p.APNParcelID)
	assert.Equal(t, "6919 se paul revere ct, hobe sound, fl 33455", p.FullAddress)
	require.NotNil(t, p.EstimatedValue)
	assert.Equal(t, int64(455000), *p.EstimatedValue)
}
