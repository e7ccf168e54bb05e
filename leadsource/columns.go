/*
Package leadsource parses lead-generation exports (DealMachine-style CSV
and XLSX files) into reconcile.ExternalRecord rows.

The column-name dictionary lives here, not in the engine: exports rename
columns between tool versions, and the consolidated CSV the team produces
uses yet another set. Each engine field therefore maps to a list of known
aliases, checked in order. Repeating contact blocks arrive as numbered
column groups (contact_1_full_name ... contact_15_emails) with phones and
emails packed into comma-separated cells.
*/
package leadsource

import (
	"fmt"
	"strings"

	"github.com/123Soldcash/crm-123drive-v2/reconcile"
)

// maxContactGroups is how many numbered contact blocks an export may carry.
const maxContactGroups = 15

// maxValuesPerContact bounds phones/emails parsed per contact group.
const maxValuesPerContact = 5

// fieldAliases maps an engine field to the column names that carry it,
// most specific first.
var fieldAliases = map[string][]string{
	"apn":             {"apn_parcel_id", "apn", "parcel_number"},
	"property_id":     {"property_id"},
	"address_full":    {"property_address_full", "address_of_the_property"},
	"address_line_1":  {"property_address_line_1", "address", "address_line_1"},
	"city":            {"property_address_city", "city"},
	"state":           {"property_address_state", "state"},
	"zipcode":         {"property_address_zipcode", "zipcode", "zip"},
	"estimated_value": {"estimated_value"},
	"equity_amount":   {"equity_amount"},
	"repair_cost":     {"estimated_repair_cost"},
	"year_built":      {"year_built"},
	"bedrooms":        {"bedrooms", "beds"},
	"bathrooms":       {"bathrooms", "baths"},
	"property_type":   {"property_type"},
	"market_status":   {"market_status", "mls_status"},
	"owner_1_name":    {"owner_1_name"},
	"owner_2_name":    {"owner_2_name"},
}

// mapper resolves header names to row positions.
type mapper struct {
	index map[string]int
}

func newMapper(header []string) *mapper {
	m := &mapper{index: make(map[string]int, len(header))}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if name == "" {
			continue
		}
		if _, taken := m.index[name]; !taken {
			m.index[name] = i
		}
	}
	return m
}

// cell returns the trimmed value of the named column, or "".
func (m *mapper) cell(row []string, name string) string {
	i, ok := m.index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// field resolves an engine field through its alias list.
func (m *mapper) field(row []string, field string) string {
	for _, name := range fieldAliases[field] {
		if v := m.cell(row, name); v != "" {
			return v
		}
	}
	return ""
}

// record maps one export row onto an ExternalRecord. Malformed cells are
// dropped field-by-field; a row never fails to parse.
func (m *mapper) record(row []string, rowNum int) *reconcile.ExternalRecord {
	rec := &reconcile.ExternalRecord{
		RowNum:      rowNum,
		APNParcelID: m.field(row, "apn"),
		PropertyID:  m.field(row, "property_id"),

		PropertyType: m.field(row, "property_type"),
		MarketStatus: m.field(row, "market_status"),
		Owner1Name:   m.field(row, "owner_1_name"),
		Owner2Name:   m.field(row, "owner_2_name"),
	}

	// Consolidated exports carry a single full-address column; raw exports
	// split it. Either way FullAddress() yields the comparable projection.
	if full := m.field(row, "address_full"); full != "" {
		rec.AddressLine1 = full
	} else {
		rec.AddressLine1 = m.field(row, "address_line_1")
		rec.City = m.field(row, "city")
		rec.State = m.field(row, "state")
		rec.Zipcode = m.field(row, "zipcode")
	}

	rec.EstimatedValue = currencyField(m.field(row, "estimated_value"))
	rec.EquityAmount = currencyField(m.field(row, "equity_amount"))
	rec.EstimatedRepairCost = currencyField(m.field(row, "repair_cost"))
	rec.YearBuilt = intField(m.field(row, "year_built"))
	rec.TotalBedrooms = intField(m.field(row, "bedrooms"))
	rec.TotalBaths = intField(m.field(row, "bathrooms"))

	for i := 1; i <= maxContactGroups; i++ {
		name := m.cell(row, fmt.Sprintf("contact_%d_full_name", i))
		if name == "" {
			continue
		}
		group := reconcile.ContactGroup{
			Name:           name,
			Flags:          m.cell(row, fmt.Sprintf("contact_%d_flags", i)),
			MailingAddress: m.cell(row, fmt.Sprintf("contact_%d_mailing_address", i)),
		}
		for j, raw := range splitValues(m.cell(row, fmt.Sprintf("contact_%d_phones", i))) {
			group.Phones = append(group.Phones, reconcile.PhoneEntry{
				Number:  raw,
				Primary: j == 0,
			})
		}
		for j, raw := range splitValues(m.cell(row, fmt.Sprintf("contact_%d_emails", i))) {
			group.Emails = append(group.Emails, reconcile.EmailEntry{
				Address: raw,
				Primary: j == 0,
			})
		}
		rec.Contacts = append(rec.Contacts, group)
	}

	return rec
}

// splitValues splits a comma-packed cell, dropping empties and bounding
// the result per contact.
func splitValues(cell string) []string {
	if cell == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(cell, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
		if len(out) == maxValuesPerContact {
			break
		}
	}
	return out
}

// currencyField parses a money cell, nil when malformed or empty.
func currencyField(raw string) *int64 {
	v, ok := reconcile.NormalizeCurrency(raw)
	if !ok {
		return nil
	}
	return &v
}

// intField parses an integer cell, tolerating "3.0"-style float artifacts.
func intField(raw string) *int {
	v, ok := reconcile.NormalizeCurrency(raw)
	if !ok {
		return nil
	}
	n := int(v)
	return &n
}
