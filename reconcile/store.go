/*
store.go - Persistence interface between the engine and the CRM database

PURPOSE:
  Defines the four mutation operations the merge engine is allowed to use,
  plus the snapshot load the batch driver performs once up front. Different
  implementations back this with SQLite or in-memory maps.

IDEMPOTENCY CONTRACT:
  Every mutation must be a no-op under repeated calls with identical
  arguments:
  - UpsertEntity:        writing the same field values twice changes nothing
  - FindOrCreateContact: the (property, normalized name) pair is unique;
                         re-encountering a name returns the existing id
  - AddPhoneIfAbsent:    a phone value attaches at most once per contact
  - AddEmailIfAbsent:    an email value attaches at most once per contact

SNAPSHOT SEMANTICS:
  LoadProperties is called once per batch run. The engine never re-reads
  the store mid-batch; entities created during the run are made matchable
  by adding them to the in-memory Index instead.

IMPLEMENTATIONS:
  - reconcile/store/memory.go: in-memory, for tests and dry runs
  - store/sqlite/sqlite.go:    production SQLite store
*/
package reconcile

import "context"

// Store is the persistence collaborator for one batch run.
type Store interface {
	// LoadProperties returns the full property snapshot for the index.
	LoadProperties(ctx context.Context) ([]Property, error)

	// UpsertEntity creates the property when p.ID is zero (setting p.ID)
	// or writes its current field values otherwise.
	UpsertEntity(ctx context.Context, p *Property) error

	// FindOrCreateContact resolves a contact by (property, normalized name),
	// creating it if absent. Returns (contactID, created, error). Existing
	// contacts are returned as-is; their scalar fields are not modified.
	FindOrCreateContact(ctx context.Context, propertyID int64, c Contact) (int64, bool, error)

	// AddPhoneIfAbsent attaches a phone value to a contact.
	// Returns false when the value was already present.
	AddPhoneIfAbsent(ctx context.Context, contactID int64, ph PhoneEntry) (bool, error)

	// AddEmailIfAbsent attaches an email value to a contact.
	// Returns false when the value was already present.
	AddEmailIfAbsent(ctx context.Context, contactID int64, em EmailEntry) (bool, error)
}

// TxStore wraps Store with batch-level transaction support, so a whole run
// can be flushed as a single logical transaction. If fn returns an error
// the transaction rolls back; otherwise it commits.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
