/*
Package sqlite provides the SQLite-backed implementation of the
reconcile.Store persistence collaborator.

PURPOSE:
  Durable home for the CRM property/contact schema the import batches
  reconcile against. In production the same patterns apply to MySQL or
  PostgreSQL - only minor SQL dialect differences.

IDEMPOTENCY ENFORCEMENT:
  The idempotency contract of reconcile.Store is backed by unique indexes,
  so repeated identical mutations are database-level no-ops:
  - idx_contacts_property_name:  one contact per (property, normalized name)
  - idx_phones_contact_number:   one row per (contact, phone value)
  - idx_emails_contact_email:    one row per (contact, email value)

KEY TABLES:
  properties:     durable property records with identifying keys and a
                  normalized full-address projection for fuzzy matching
  contacts:       contacts owned by one property (nameKey = lower(name))
  contactPhones:  phone values, primary flag, line type
  contactEmails:  email values, primary flag

TRANSACTIONS:
  WithTx lets the batch driver flush a whole run as one logical
  transaction, bounding how much work is lost on failure.

USAGE:
  st, err := sqlite.New("./data/crm.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - reconcile/store.go: interface definition and contract
  - reconcile/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/123Soldcash/crm-123drive-v2/reconcile"
)

// Store implements reconcile.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS properties (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		apnParcelId TEXT,
		propertyId TEXT,
		addressLine1 TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zipcode TEXT NOT NULL DEFAULT '',
		fullAddress TEXT NOT NULL DEFAULT '',
		estimatedValue INTEGER,
		equityAmount INTEGER,
		estimatedRepairCost INTEGER,
		yearBuilt INTEGER,
		totalBedrooms INTEGER,
		totalBaths INTEGER,
		propertyType TEXT,
		marketStatus TEXT,
		owner1Name TEXT,
		owner2Name TEXT,
		createdAt TEXT NOT NULL,
		updatedAt TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_properties_apn
		ON properties(apnParcelId) WHERE apnParcelId IS NOT NULL AND apnParcelId != '';
	CREATE INDEX IF NOT EXISTS idx_properties_external_id
		ON properties(propertyId) WHERE propertyId IS NOT NULL AND propertyId != '';

	CREATE TABLE IF NOT EXISTS contacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		propertyId INTEGER NOT NULL,
		name TEXT,
		nameKey TEXT NOT NULL,
		flags TEXT,
		currentAddress TEXT,
		createdAt TEXT NOT NULL,
		updatedAt TEXT NOT NULL
	);

	-- One contact per (property, normalized name). Re-imports reuse the row.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_property_name
		ON contacts(propertyId, nameKey);

	CREATE TABLE IF NOT EXISTS contactPhones (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contactId INTEGER NOT NULL,
		phoneNumber TEXT NOT NULL,
		isPrimary INTEGER NOT NULL DEFAULT 0,
		type TEXT,
		createdAt TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_phones_contact_number
		ON contactPhones(contactId, phoneNumber);

	CREATE TABLE IF NOT EXISTS contactEmails (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contactId INTEGER NOT NULL,
		email TEXT NOT NULL,
		isPrimary INTEGER NOT NULL DEFAULT 0,
		createdAt TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_emails_contact_email
		ON contactEmails(contactId, email);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RECONCILE STORE (reconcile.Store interface)
// =============================================================================

// LoadProperties returns the full property snapshot for the match index.
func (s *Store) LoadProperties(ctx context.Context) ([]reconcile.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadProperties(ctx, s.db)
}

func loadProperties(ctx context.Context, db dbtx) ([]reconcile.Property, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, apnParcelId, propertyId,
		       addressLine1, city, state, zipcode, fullAddress,
		       estimatedValue, equityAmount, estimatedRepairCost,
		       yearBuilt, totalBedrooms, totalBaths,
		       propertyType, marketStatus, owner1Name, owner2Name
		FROM properties
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var props []reconcile.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

func scanProperty(rows *sql.Rows) (reconcile.Property, error) {
	var (
		p                                reconcile.Property
		apn, extID                       sql.NullString
		estValue, equity, repairCost     sql.NullInt64
		yearBuilt, bedrooms, baths       sql.NullInt64
		propType, market, owner1, owner2 sql.NullString
	)

	err := rows.Scan(
		&p.ID, &apn, &extID,
		&p.AddressLine1, &p.City, &p.State, &p.Zipcode, &p.FullAddress,
		&estValue, &equity, &repairCost,
		&yearBuilt, &bedrooms, &baths,
		&propType, &market, &owner1, &owner2,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan property: %w", err)
	}

	p.APNParcelID = apn.String
	p.PropertyID = extID.String
	p.EstimatedValue = nullableInt64(estValue)
	p.EquityAmount = nullableInt64(equity)
	p.EstimatedRepairCost = nullableInt64(repairCost)
	p.YearBuilt = nullableInt(yearBuilt)
	p.TotalBedrooms = nullableInt(bedrooms)
	p.TotalBaths = nullableInt(baths)
	p.PropertyType = propType.String
	p.MarketStatus = market.String
	p.Owner1Name = owner1.String
	p.Owner2Name = owner2.String
	return p, nil
}

// UpsertEntity creates the property when p.ID is zero, otherwise writes its
// current field values. Writing identical values twice changes nothing.
func (s *Store) UpsertEntity(ctx context.Context, p *reconcile.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertEntity(ctx, s.db, p)
}

func upsertEntity(ctx context.Context, db dbtx, p *reconcile.Property) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if p.ID == 0 {
		res, err := db.ExecContext(ctx, `
			INSERT INTO properties
			(apnParcelId, propertyId, addressLine1, city, state, zipcode, fullAddress,
			 estimatedValue, equityAmount, estimatedRepairCost,
			 yearBuilt, totalBedrooms, totalBaths,
			 propertyType, marketStatus, owner1Name, owner2Name,
			 createdAt, updatedAt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			nullString(p.APNParcelID), nullString(p.PropertyID),
			p.AddressLine1, p.City, p.State, p.Zipcode, p.FullAddress,
			int64Arg(p.EstimatedValue), int64Arg(p.EquityAmount), int64Arg(p.EstimatedRepairCost),
			intArg(p.YearBuilt), intArg(p.TotalBedrooms), intArg(p.TotalBaths),
			nullString(p.PropertyType), nullString(p.MarketStatus),
			nullString(p.Owner1Name), nullString(p.Owner2Name),
			now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert property: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read property id: %w", err)
		}
		p.ID = id
		return nil
	}

	_, err := db.ExecContext(ctx, `
		UPDATE properties SET
			apnParcelId = ?, propertyId = ?,
			addressLine1 = ?, city = ?, state = ?, zipcode = ?, fullAddress = ?,
			estimatedValue = ?, equityAmount = ?, estimatedRepairCost = ?,
			yearBuilt = ?, totalBedrooms = ?, totalBaths = ?,
			propertyType = ?, marketStatus = ?, owner1Name = ?, owner2Name = ?,
			updatedAt = ?
		WHERE id = ?
	`,
		nullString(p.APNParcelID), nullString(p.PropertyID),
		p.AddressLine1, p.City, p.State, p.Zipcode, p.FullAddress,
		int64Arg(p.EstimatedValue), int64Arg(p.EquityAmount), int64Arg(p.EstimatedRepairCost),
		intArg(p.YearBuilt), intArg(p.TotalBedrooms), intArg(p.TotalBaths),
		nullString(p.PropertyType), nullString(p.MarketStatus),
		nullString(p.Owner1Name), nullString(p.Owner2Name),
		now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update property %d: %w", p.ID, err)
	}
	return nil
}

// FindOrCreateContact resolves a contact by (property, normalized name).
func (s *Store) FindOrCreateContact(ctx context.Context, propertyID int64, c reconcile.Contact) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findOrCreateContact(ctx, s.db, propertyID, c)
}

func findOrCreateContact(ctx context.Context, db dbtx, propertyID int64, c reconcile.Contact) (int64, bool, error) {
	nameKey := c.NameKey()

	var id int64
	err := db.QueryRowContext(ctx,
		"SELECT id FROM contacts WHERE propertyId = ? AND nameKey = ?",
		propertyID, nameKey,
	).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("failed to look up contact: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := db.ExecContext(ctx, `
		INSERT INTO contacts (propertyId, name, nameKey, flags, currentAddress, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(propertyId, nameKey) DO NOTHING
	`, propertyID, c.Name, nameKey, nullString(c.Flags), nullString(c.CurrentAddress), now, now)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert contact: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		// Lost a race to another writer; re-read the winner.
		err := db.QueryRowContext(ctx,
			"SELECT id FROM contacts WHERE propertyId = ? AND nameKey = ?",
			propertyID, nameKey,
		).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("failed to re-read contact: %w", err)
		}
		return id, false, nil
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read contact id: %w", err)
	}
	return id, true, nil
}

// AddPhoneIfAbsent attaches a phone value to a contact. Duplicate values
// are no-ops, reported as added=false.
func (s *Store) AddPhoneIfAbsent(ctx context.Context, contactID int64, ph reconcile.PhoneEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addPhoneIfAbsent(ctx, s.db, contactID, ph)
}

func addPhoneIfAbsent(ctx context.Context, db dbtx, contactID int64, ph reconcile.PhoneEntry) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO contactPhones (contactId, phoneNumber, isPrimary, type, createdAt)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(contactId, phoneNumber) DO NOTHING
	`, contactID, ph.Number, boolToInt(ph.Primary), nullString(ph.Type),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to insert phone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// AddEmailIfAbsent attaches an email value to a contact. Duplicate values
// are no-ops, reported as added=false.
func (s *Store) AddEmailIfAbsent(ctx context.Context, contactID int64, em reconcile.EmailEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addEmailIfAbsent(ctx, s.db, contactID, em)
}

func addEmailIfAbsent(ctx context.Context, db dbtx, contactID int64, em reconcile.EmailEntry) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO contactEmails (contactId, email, isPrimary, createdAt)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contactId, email) DO NOTHING
	`, contactID, em.Address, boolToInt(em.Primary),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to insert email: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// =============================================================================
// TRANSACTIONAL STORE (reconcile.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction, so a batch run commits
// or rolls back as one unit.
func (s *Store) WithTx(ctx context.Context, fn func(reconcile.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) LoadProperties(ctx context.Context) ([]reconcile.Property, error) {
	return loadProperties(ctx, ts.tx)
}

func (ts *txStore) UpsertEntity(ctx context.Context, p *reconcile.Property) error {
	return upsertEntity(ctx, ts.tx, p)
}

func (ts *txStore) FindOrCreateContact(ctx context.Context, propertyID int64, c reconcile.Contact) (int64, bool, error) {
	return findOrCreateContact(ctx, ts.tx, propertyID, c)
}

func (ts *txStore) AddPhoneIfAbsent(ctx context.Context, contactID int64, ph reconcile.PhoneEntry) (bool, error) {
	return addPhoneIfAbsent(ctx, ts.tx, contactID, ph)
}

func (ts *txStore) AddEmailIfAbsent(ctx context.Context, contactID int64, em reconcile.EmailEntry) (bool, error) {
	return addEmailIfAbsent(ctx, ts.tx, contactID, em)
}

// =============================================================================
// REPORTING QUERIES (for the report/verify-phones commands)
// =============================================================================

// Counts is a coarse inventory of the CRM store.
type Counts struct {
	Properties int
	Contacts   int
	Phones     int
	Emails     int
}

// CountSummary returns row counts per table.
func (s *Store) CountSummary(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"properties", &c.Properties},
		{"contacts", &c.Contacts},
		{"contactPhones", &c.Phones},
		{"contactEmails", &c.Emails},
	} {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+q.table).Scan(q.dst); err != nil {
			return c, fmt.Errorf("failed to count %s: %w", q.table, err)
		}
	}
	return c, nil
}

// PhoneListing pairs a stored phone value with its contact for bulk
// phone-intel verification.
type PhoneListing struct {
	ContactID   int64
	ContactName string
	Number      string
	Primary     bool
}

// ListPhones returns every stored phone value with its owning contact.
func (s *Store) ListPhones(ctx context.Context) ([]PhoneListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.contactId, COALESCE(c.name, ''), p.phoneNumber, p.isPrimary
		FROM contactPhones p
		LEFT JOIN contacts c ON c.id = p.contactId
		ORDER BY p.contactId ASC, p.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query phones: %w", err)
	}
	defer rows.Close()

	var listings []PhoneListing
	for rows.Next() {
		var l PhoneListing
		var primary int
		if err := rows.Scan(&l.ContactID, &l.ContactName, &l.Number, &primary); err != nil {
			return nil, fmt.Errorf("failed to scan phone: %w", err)
		}
		l.Primary = primary != 0
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullableInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func int64Arg(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intArg(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
