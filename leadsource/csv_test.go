package leadsource_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/123Soldcash/crm-123drive-v2/leadsource"
)

const consolidatedCSV = "\uFEFF" + `apn_parcel_id,property_address_full,estimated_value,equity_amount,year_built,owner_1_name,contact_1_full_name,contact_1_flags,contact_1_phones,contact_1_emails,contact_2_full_name,contact_2_phones
504128-01-1234,"6919 SE Paul Revere Ct, Hobe Sound, FL 33455","$455,000","$120,000",1987,Jane Doe,Jane Doe,Likely Owner,"5616992623, (561) 699-2624",jane@example.com,John Doe,5550001111
,"123 Main St, Delray Beach, FL 33444",n/a,,,,,,,,,
`

func TestCSVSource_ParsesConsolidatedExport(t *testing.T) {
	// GIVEN: A BOM-prefixed consolidated export with quoted money cells
	//        and comma-packed phone cells
	// WHEN: Streaming records
	// THEN: Fields, contact groups and packed values map correctly

	src, err := leadsource.NewCSV(strings.NewReader(consolidatedCSV))
	require.NoError(t, err)

	rec, err := src.Next()
	require.NoError(t, err)

	assert.Equal(t, 1, rec.RowNum)
	assert.Equal(t, "504128-01-1234", rec.APNParcelID)
	assert.Equal(t, "6919 SE Paul Revere Ct, Hobe Sound, FL 33455", rec.AddressLine1)
	require.NotNil(t, rec.EstimatedValue)
	assert.Equal(t, int64(455000), *rec.EstimatedValue)
	require.NotNil(t, rec.EquityAmount)
	assert.Equal(t, int64(120000), *rec.EquityAmount)
	require.NotNil(t, rec.YearBuilt)
	assert.Equal(t, 1987, *rec.YearBuilt)
	assert.Equal(t, "Jane Doe", rec.Owner1Name)

	require.Len(t, rec.Contacts, 2)
	jane := rec.Contacts[0]
	assert.Equal(t, "Jane Doe", jane.Name)
	assert.Equal(t, "Likely Owner", jane.Flags)
	require.Len(t, jane.Phones, 2)
	assert.Equal(t, "5616992623", jane.Phones[0].Number)
	assert.True(t, jane.Phones[0].Primary, "first packed value is the primary")
	assert.Equal(t, "(561) 699-2624", jane.Phones[1].Number, "raw until NormalizeRecord runs")
	require.Len(t, jane.Emails, 1)
	assert.Equal(t, "jane@example.com", jane.Emails[0].Address)

	assert.Equal(t, "John Doe", rec.Contacts[1].Name)
}

func TestCSVSource_MalformedCellsNeverFailARow(t *testing.T) {
	src, err := leadsource.NewCSV(strings.NewReader(consolidatedCSV))
	require.NoError(t, err)

	_, err = src.Next()
	require.NoError(t, err)

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.RowNum)
	assert.Empty(t, rec.APNParcelID)
	assert.Nil(t, rec.EstimatedValue, `"n/a" money cell must parse to nil`)
	assert.Empty(t, rec.Contacts, "nameless contact groups are dropped")

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCSVSource_SplitAddressColumns(t *testing.T) {
	// Raw exports split the address; FullAddress() rejoins it.
	csv := `address,city,state,zipcode,beds,baths
123 Main St,Delray Beach,FL,33444,3,2.0
`
	src, err := leadsource.NewCSV(strings.NewReader(csv))
	require.NoError(t, err)

	rec, err := src.Next()
	require.NoError(t, err)

	assert.Equal(t, "123 Main St", rec.AddressLine1)
	assert.Equal(t, "Delray Beach", rec.City)
	assert.Equal(t, "123 Main St, Delray Beach, FL 33444", rec.FullAddress())
	require.NotNil(t, rec.TotalBedrooms)
	assert.Equal(t, 3, *rec.TotalBedrooms)
	require.NotNil(t, rec.TotalBaths)
	assert.Equal(t, 2, *rec.TotalBaths, `"2.0" float artifact truncates`)
}

func TestCSVSource_SemicolonDelimiterDetected(t *testing.T) {
	csv := "apn;city\n504128-01-1234;Hobe Sound\n"
	src, err := leadsource.NewCSV(strings.NewReader(csv))
	require.NoError(t, err)

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "504128-01-1234", rec.APNParcelID)
	assert.Equal(t, "Hobe Sound", rec.City)
}

func TestCSVSource_PackedValuesCapped(t *testing.T) {
	// More than five packed phones: the tail is ignored.
	csv := `contact_1_full_name,contact_1_phones
Jane Doe,"1111111111,2222222222,3333333333,4444444444,5555555555,6666666666"
`
	src, err := leadsource.NewCSV(strings.NewReader(csv))
	require.NoError(t, err)

	rec, err := src.Next()
	require.NoError(t, err)
	require.Len(t, rec.Contacts, 1)
	assert.Len(t, rec.Contacts[0].Phones, 5)
}
