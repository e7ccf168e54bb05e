package reconcile_test

import (
	"testing"

	"github.com/123Soldcash/crm-123drive-v2/reconcile"
)

// =============================================================================
// PHONE NORMALIZATION TESTS
// =============================================================================

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"formatted US number", "(561) 699-2623", "5616992623"},
		{"plain digits", "5616992623", "5616992623"},
		{"country code stripped to last ten", "15616992623", "5616992623"},
		{"spreadsheet float artifact", "5616992623.0", "5616992623"},
		{"scientific notation artifact", "9.543216789E9", "9543216789"},
		{"dashes and dots", "561-699-2623", "5616992623"},
		{"too short", "12345", ""},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"letters only", "call me", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reconcile.NormalizePhone(tt.raw); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// =============================================================================
// ADDRESS NORMALIZATION TESTS
// =============================================================================

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercases", "123 MAIN ST", "123 main st"},
		{"collapses whitespace", "  123   Main  St ", "123 main st"},
		{"street suffix", "123 Main Street", "123 main st"},
		{"avenue suffix", "40 Park Avenue", "40 park ave"},
		{"court suffix with city", "6919 SE Paul Revere Court, Hobe Sound, FL 33455", "6919 se paul revere ct, hobe sound, fl 33455"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reconcile.NormalizeAddress(tt.raw); got != tt.want {
				t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeAddress_Idempotent(t *testing.T) {
	// GIVEN: An already-normalized address
	// WHEN: Normalizing it again
	// THEN: The value is unchanged

	inputs := []string{
		"123 Main Street",
		"6919 SE PAUL REVERE COURT,  HOBE SOUND, FL 33455",
		"40 park ave",
	}
	for _, raw := range inputs {
		once := reconcile.NormalizeAddress(raw)
		twice := reconcile.NormalizeAddress(once)
		if once != twice {
			t.Errorf("NormalizeAddress not idempotent for %q: %q != %q", raw, once, twice)
		}
	}
}

// =============================================================================
// EMAIL / CURRENCY / NAME NORMALIZATION TESTS
// =============================================================================

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Jane.Doe@Example.COM ", "jane.doe@example.com"},
		{"not-an-email", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := reconcile.NormalizeEmail(tt.raw); got != tt.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		raw    string
		want   int64
		wantOK bool
	}{
		{"$455,000", 455000, true},
		{"1250000.75", 1250000, true},
		{"$ 98,500.00", 98500, true},
		{"455000", 455000, true},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := reconcile.NormalizeCurrency(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("NormalizeCurrency(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	if got := reconcile.NormalizeName("  Jane DOE "); got != "jane doe" {
		t.Errorf("NormalizeName = %q, want %q", got, "jane doe")
	}
}

// =============================================================================
// RECORD NORMALIZATION TESTS
// =============================================================================

func TestNormalizeRecord_DedupesAndDropsMalformed(t *testing.T) {
	// GIVEN: A contact group with duplicate, malformed and formatted values
	// WHEN: Normalizing the record
	// THEN: Duplicates collapse, malformed values drop, survivors are canonical

	rec := &reconcile.ExternalRecord{
		APNParcelID: " 504128-01-1234 ",
		Contacts: []reconcile.ContactGroup{{
			Name: " Jane Doe ",
			Phones: []reconcile.PhoneEntry{
				{Number: "(561) 699-2623"},
				{Number: "5616992623"}, // same number, different format
				{Number: "12345"},      // too short
			},
			Emails: []reconcile.EmailEntry{
				{Address: "Jane@Example.com"},
				{Address: "jane@example.com"}, // duplicate after lowering
				{Address: "not-an-email"},
			},
		}},
	}

	dropped := reconcile.NormalizeRecord(rec)

	if rec.APNParcelID != "504128-01-1234" {
		t.Errorf("APN not trimmed: %q", rec.APNParcelID)
	}
	if dropped.Phones != 2 || dropped.Emails != 2 {
		t.Errorf("dropped = %+v, want 2 phones and 2 emails", dropped)
	}

	g := rec.Contacts[0]
	if g.Name != "Jane Doe" {
		t.Errorf("name not trimmed: %q", g.Name)
	}
	if len(g.Phones) != 1 || g.Phones[0].Number != "5616992623" {
		t.Errorf("phones = %+v, want single 5616992623", g.Phones)
	}
	if len(g.Emails) != 1 || g.Emails[0].Address != "jane@example.com" {
		t.Errorf("emails = %+v, want single jane@example.com", g.Emails)
	}
}

func TestNormalizeRecord_FirstValueBecomesPrimary(t *testing.T) {
	// GIVEN: No value flagged primary, and the first phone is malformed
	// WHEN: Normalizing the record
	// THEN: The first surviving value carries the primary flag

	rec := &reconcile.ExternalRecord{
		Contacts: []reconcile.ContactGroup{{
			Name: "Jane Doe",
			Phones: []reconcile.PhoneEntry{
				{Number: "bogus"},
				{Number: "5616992623"},
				{Number: "5616992624"},
			},
		}},
	}

	reconcile.NormalizeRecord(rec)

	phones := rec.Contacts[0].Phones
	if len(phones) != 2 {
		t.Fatalf("got %d phones, want 2", len(phones))
	}
	if !phones[0].Primary {
		t.Error("first surviving phone should be primary")
	}
	if phones[1].Primary {
		t.Error("second phone should not be primary")
	}
}

func TestNormalizeRecord_ExplicitPrimaryKept(t *testing.T) {
	// GIVEN: The second phone is already flagged primary
	// WHEN: Normalizing the record
	// THEN: The existing flag is respected, not reassigned to the first

	rec := &reconcile.ExternalRecord{
		Contacts: []reconcile.ContactGroup{{
			Name: "Jane Doe",
			Phones: []reconcile.PhoneEntry{
				{Number: "5616992623"},
				{Number: "5616992624", Primary: true},
			},
		}},
	}

	reconcile.NormalizeRecord(rec)

	phones := rec.Contacts[0].Phones
	if phones[0].Primary {
		t.Error("first phone should not have been promoted")
	}
	if !phones[1].Primary {
		t.Error("explicit primary flag was lost")
	}
}
