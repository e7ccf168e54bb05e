// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/123Soldcash/crm-123drive-v2/reconcile"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev and dry runs)
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	nextPropertyID int64
	nextContactID  int64

	properties map[int64]*reconcile.Property
	order      []int64
	contacts   map[int64]*reconcile.Contact
	byNameKey  map[contactKey]int64
	phones     map[int64][]reconcile.PhoneEntry
	emails     map[int64][]reconcile.EmailEntry
}

type contactKey struct {
	PropertyID int64
	NameKey    string
}

func NewMemory() *Memory {
	return &Memory{
		properties: make(map[int64]*reconcile.Property),
		contacts:   make(map[int64]*reconcile.Contact),
		byNameKey:  make(map[contactKey]int64),
		phones:     make(map[int64][]reconcile.PhoneEntry),
		emails:     make(map[int64][]reconcile.EmailEntry),
	}
}

// Seed inserts a pre-existing property, assigning an id when missing.
// Test fixture helper; production snapshots come from SQLite.
func (m *Memory) Seed(p reconcile.Property) *reconcile.Property {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == 0 {
		m.nextPropertyID++
		p.ID = m.nextPropertyID
	} else if p.ID > m.nextPropertyID {
		m.nextPropertyID = p.ID
	}
	stored := p
	m.properties[p.ID] = &stored
	m.order = append(m.order, p.ID)
	return &stored
}

func (m *Memory) LoadProperties(_ context.Context) ([]reconcile.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]reconcile.Property, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.properties[id])
	}
	return out, nil
}

func (m *Memory) UpsertEntity(_ context.Context, p *reconcile.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == 0 {
		m.nextPropertyID++
		p.ID = m.nextPropertyID
		m.order = append(m.order, p.ID)
	}
	stored := *p
	m.properties[p.ID] = &stored
	return nil
}

func (m *Memory) FindOrCreateContact(_ context.Context, propertyID int64, c reconcile.Contact) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := contactKey{PropertyID: propertyID, NameKey: c.NameKey()}
	if id, ok := m.byNameKey[key]; ok {
		return id, false, nil
	}

	m.nextContactID++
	c.ID = m.nextContactID
	c.PropertyRef = propertyID
	m.contacts[c.ID] = &c
	m.byNameKey[key] = c.ID
	return c.ID, true, nil
}

func (m *Memory) AddPhoneIfAbsent(_ context.Context, contactID int64, ph reconcile.PhoneEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.phones[contactID] {
		if existing.Number == ph.Number {
			return false, nil
		}
	}
	m.phones[contactID] = append(m.phones[contactID], ph)
	return true, nil
}

func (m *Memory) AddEmailIfAbsent(_ context.Context, contactID int64, em reconcile.EmailEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.emails[contactID] {
		if existing.Address == em.Address {
			return false, nil
		}
	}
	m.emails[contactID] = append(m.emails[contactID], em)
	return true, nil
}

// =============================================================================
// TEST ACCESSORS
// =============================================================================

// Property returns a copy of the stored property, or nil.
func (m *Memory) Property(id int64) *reconcile.Property {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.properties[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// ContactsFor returns the contacts owned by a property.
func (m *Memory) ContactsFor(propertyID int64) []reconcile.Contact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []reconcile.Contact
	for _, id := range sortedContactIDs(m.contacts) {
		if m.contacts[id].PropertyRef == propertyID {
			out = append(out, *m.contacts[id])
		}
	}
	return out
}

// PhonesFor returns the phone values attached to a contact.
func (m *Memory) PhonesFor(contactID int64) []reconcile.PhoneEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]reconcile.PhoneEntry(nil), m.phones[contactID]...)
}

// EmailsFor returns the email values attached to a contact.
func (m *Memory) EmailsFor(contactID int64) []reconcile.EmailEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]reconcile.EmailEntry(nil), m.emails[contactID]...)
}

func sortedContactIDs(contacts map[int64]*reconcile.Contact) []int64 {
	ids := make([]int64, 0, len(contacts))
	for id := range contacts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
