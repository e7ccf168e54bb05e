package reconcile

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// NORMALIZERS
// =============================================================================
// All functions here are pure, total and idempotent. Malformed input never
// produces an error; it produces the empty value (or nil) instead, which the
// caller treats as a field-level skip rather than a record failure.

// suffixAbbreviations is the fixed street-suffix table applied during
// address normalization. Longest forms are replaced with the abbreviation
// the CRM stores, so exported and stored addresses compare equal.
var suffixAbbreviations = [][2]string{
	{" street", " st"},
	{" avenue", " ave"},
	{" road", " rd"},
	{" drive", " dr"},
	{" boulevard", " blvd"},
	{" lane", " ln"},
	{" court", " ct"},
	{" place", " pl"},
}

// NormalizeAddress lowercases, collapses whitespace and expands the fixed
// street-suffix table. Empty input yields the empty string.
func NormalizeAddress(text string) string {
	addr := strings.ToLower(strings.TrimSpace(text))
	if addr == "" {
		return ""
	}
	addr = strings.Join(strings.Fields(addr), " ")
	for _, pair := range suffixAbbreviations {
		addr = strings.ReplaceAll(addr, pair[0], pair[1])
	}
	return addr
}

// NormalizePhone strips everything but digits and returns the last 10 digits,
// or "" when fewer than 10 survive. Spreadsheet cells often carry numeric
// artifacts ("9.543E+9", "5616992623.0"); those are recovered by
// round-tripping through a decimal parse before re-stringifying.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	cleaned := digitsOnly(raw)

	if strings.ContainsAny(raw, ".eE") {
		if d, err := decimal.NewFromString(raw); err == nil {
			cleaned = digitsOnly(d.Truncate(0).String())
		}
	}

	if len(cleaned) >= 10 {
		return cleaned[len(cleaned)-10:]
	}
	return ""
}

// NormalizeEmail trims and lowercases. Anything without an '@' is dropped.
func NormalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !strings.Contains(email, "@") {
		return ""
	}
	return email
}

// NormalizeCurrency strips currency symbols, commas and whitespace, parses
// the remainder as a number and truncates to a whole amount. The second
// return is false on any parse failure.
func NormalizeCurrency(raw string) (int64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	return d.Truncate(0).IntPart(), true
}

// NormalizeName produces the contact identity key: trimmed, lower-cased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// =============================================================================
// RECORD NORMALIZATION
// =============================================================================

// DroppedValues counts contact values a record lost during normalization,
// either malformed or duplicated within their group. Reported per field
// class so messy exports are visible in the batch summary.
type DroppedValues struct {
	Phones int
	Emails int
}

// NormalizeRecord normalizes a record's contact groups in place: phone and
// email values are canonicalized, values that do not survive normalization
// are dropped, duplicates within a group collapse, and the first surviving
// phone/email becomes primary when none is flagged. Identifying keys are
// trimmed. Malformed fields are skipped, never fatal.
func NormalizeRecord(rec *ExternalRecord) DroppedValues {
	var dropped DroppedValues

	rec.APNParcelID = strings.TrimSpace(rec.APNParcelID)
	rec.PropertyID = strings.TrimSpace(rec.PropertyID)

	for i := range rec.Contacts {
		g := &rec.Contacts[i]
		g.Name = strings.TrimSpace(g.Name)

		phones := g.Phones[:0]
		seenPhones := make(map[string]bool, len(g.Phones))
		for _, ph := range g.Phones {
			num := NormalizePhone(ph.Number)
			if num == "" || seenPhones[num] {
				dropped.Phones++
				continue
			}
			seenPhones[num] = true
			ph.Number = num
			phones = append(phones, ph)
		}
		g.Phones = phones
		markFirstPhonePrimary(g.Phones)

		emails := g.Emails[:0]
		seenEmails := make(map[string]bool, len(g.Emails))
		for _, em := range g.Emails {
			addr := NormalizeEmail(em.Address)
			if addr == "" || seenEmails[addr] {
				dropped.Emails++
				continue
			}
			seenEmails[addr] = true
			em.Address = addr
			emails = append(emails, em)
		}
		g.Emails = emails
		markFirstEmailPrimary(g.Emails)
	}

	return dropped
}

func markFirstPhonePrimary(phones []PhoneEntry) {
	for _, ph := range phones {
		if ph.Primary {
			return
		}
	}
	if len(phones) > 0 {
		phones[0].Primary = true
	}
}

func markFirstEmailPrimary(emails []EmailEntry) {
	for _, em := range emails {
		if em.Primary {
			return
		}
	}
	if len(emails) > 0 {
		emails[0].Primary = true
	}
}
