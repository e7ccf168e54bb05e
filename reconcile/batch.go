/*
batch.go - Batch driver: Init -> LoadIndex -> per-row pipeline -> Finalize

PURPOSE:
  Orchestrates one import run over a row source:

    row -> NormalizeRecord -> Index.Match -> (Merger.Merge | Sink.Capture)

  and aggregates per-strategy match counts plus merge stats into a Report.

FAILURE MODEL:
  - Index load failure aborts the run before any row (ErrStoreUnavailable).
  - A per-record merge failure is caught, logged with the record's row/APN/
    address, recorded in Report.Failures and the record re-routed to the
    sink. The batch always continues. Exports come from messy spreadsheets;
    one bad row must not cost the other nine hundred.

READ-YOUR-OWN-WRITES:
  The snapshot index is read-only for the run, except that entities created
  in create-missing mode are added to it immediately, so later rows in the
  same batch reconcile against them.
*/
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// RowSource yields parsed export rows. Next returns io.EOF when exhausted.
type RowSource interface {
	Next() (*ExternalRecord, error)
}

// Failure attributes one abandoned record in the final report.
type Failure struct {
	RowNum  int    `json:"row"`
	APN     string `json:"apn,omitempty"`
	Address string `json:"address,omitempty"`
	Err     string `json:"error"`
}

// Report is the aggregate outcome of one batch run.
type Report struct {
	RunID string `json:"run_id"`

	Rows                int `json:"rows"`
	MatchedByAPN        int `json:"matched_apn"`
	MatchedByPropertyID int `json:"matched_property_id"`
	MatchedByAddress    int `json:"matched_address"`
	Unmatched           int `json:"unmatched"`

	// Contact values lost to normalization (malformed or duplicate).
	PhonesDropped int `json:"phones_dropped"`
	EmailsDropped int `json:"emails_dropped"`

	PropertiesCreated int `json:"properties_created"`
	PropertiesUpdated int `json:"properties_updated"`
	ContactsAdded     int `json:"contacts_added"`
	PhonesAdded       int `json:"phones_added"`
	EmailsAdded       int `json:"emails_added"`

	Failures []Failure `json:"failures,omitempty"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Driver runs batches. Store and Sink are required; the zero values of the
// remaining fields give a silent run with default progress cadence.
type Driver struct {
	Store Store
	Sink  *Sink

	// CreateMissing makes unmatched records create a new property instead
	// of going to the sink. The new entity is indexed immediately.
	CreateMissing bool

	// Logf receives progress and per-record failure lines. Nil disables.
	Logf func(format string, args ...any)

	// ProgressEvery controls progress-line cadence in rows. Default 100.
	ProgressEvery int
}

// Run executes one batch over src. The returned report is valid even when
// err is non-nil (context cancellation), covering the rows processed so far.
func (d *Driver) Run(ctx context.Context, src RowSource) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: time.Now().UTC(),
	}

	props, err := d.Store.LoadProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("load property index: %w: %w", ErrStoreUnavailable, err)
	}
	index := NewIndex(props)
	merger := &Merger{Store: d.Store}
	d.logf("loaded %d existing properties", index.Len())

	every := d.ProgressEvery
	if every <= 0 {
		every = 100
	}

	for {
		if err := ctx.Err(); err != nil {
			report.Finished = time.Now().UTC()
			return report, err
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report.Finished = time.Now().UTC()
			return report, fmt.Errorf("row source: %w", err)
		}

		report.Rows++
		dropped := NormalizeRecord(rec)
		report.PhonesDropped += dropped.Phones
		report.EmailsDropped += dropped.Emails

		target, reason := index.Match(rec)
		switch reason {
		case MatchedByParcel:
			report.MatchedByAPN++
		case MatchedByPropertyID:
			report.MatchedByPropertyID++
		case MatchedByAddress:
			report.MatchedByAddress++
		}

		created := false
		if target == nil {
			if !d.CreateMissing {
				report.Unmatched++
				d.Sink.Capture(rec, string(Unmatched))
				d.logf("[%d] NOT MATCHED: %s (apn=%s)", rec.RowNum, rec.FullAddress(), rec.APNParcelID)
				continue
			}
			target = NewPropertyFromRecord(rec)
			created = true
		}

		stats, err := merger.Merge(ctx, rec, target)
		report.ContactsAdded += stats.ContactsAdded
		report.PhonesAdded += stats.PhonesAdded
		report.EmailsAdded += stats.EmailsAdded
		if err != nil {
			d.recordFailure(report, rec, err)
			continue
		}

		if created {
			// New entity becomes matchable for the rest of the run.
			index.Add(target)
			report.PropertiesCreated++
		} else if stats.FieldsUpdated > 0 {
			report.PropertiesUpdated++
		}

		if report.Rows%every == 0 {
			d.logf("processed %d rows (%d unmatched so far)", report.Rows, report.Unmatched)
		}
	}

	report.Finished = time.Now().UTC()
	return report, nil
}

// recordFailure routes a record whose merge failed: counted, attributable
// in the report, and captured in the sink for retry. Never aborts.
func (d *Driver) recordFailure(report *Report, rec *ExternalRecord, err error) {
	perr := &PersistenceError{
		RowNum:  rec.RowNum,
		APN:     rec.APNParcelID,
		Address: rec.FullAddress(),
		Op:      "merge",
		Err:     err,
	}
	report.Failures = append(report.Failures, Failure{
		RowNum:  rec.RowNum,
		APN:     rec.APNParcelID,
		Address: rec.FullAddress(),
		Err:     err.Error(),
	})
	d.Sink.Capture(rec, perr.Error())
	d.logf("[%d] MERGE FAILED: %v", rec.RowNum, perr)
}

func (d *Driver) logf(format string, args ...any) {
	if d.Logf != nil {
		d.Logf(format, args...)
	}
}
