package prescription

import (
	"context"
	"sync"

	"github.com/rxdesk/rxdesk/internal/domain/reference"
)

var (
	acme     = reference.Drug{Company: "Acme", TradeName: "Painaway"}
	acmeCold = reference.Drug{Company: "Acme", TradeName: "Coldaway"}
	globex   = reference.Drug{Company: "Globex", TradeName: "Painaway"}
	mainSt   = reference.Pharmacy{Name: "Main-Street Pharmacy", Address: "1 Main St"}
)

// mockStore is an in-memory Store. When block is set, UpsertPrescription
// signals on entered and waits for block to be closed. When nextID is set,
// a successful upsert replaces any stored prescription for the same pair
// with a new one numbered nextID.
type mockStore struct {
	mu        sync.Mutex
	list      []Prescription
	nextID    int64
	upserts   []UpsertRequest
	deletes   []int64
	listCalls int
	upsertErr error
	deleteErr error
	listErr   error
	ctxErr    error
	entered   chan struct{}
	block     chan struct{}
}

func (m *mockStore) ListPrescriptions(context.Context) ([]Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]Prescription(nil), m.list...), nil
}

func (m *mockStore) UpsertPrescription(ctx context.Context, req UpsertRequest) error {
	if m.block != nil {
		m.entered <- struct{}{}
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	m.upserts = append(m.upserts, req)
	if m.upsertErr == nil && m.nextID > 0 {
		m.persist(req)
	}
	return m.upsertErr
}

func (m *mockStore) persist(req UpsertRequest) {
	kept := m.list[:0]
	for _, p := range m.list {
		if p.DoctorID != req.DoctorID || p.PatientID != req.PatientID {
			kept = append(kept, p)
		}
	}
	m.list = append(kept, Prescription{
		ID:        m.nextID,
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Pharmacy:  reference.Pharmacy{Name: req.PharmacyName, Address: req.PharmacyAddress},
		Date:      req.Date,
	})
	m.nextID++
}

func (m *mockStore) DeletePrescription(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, id)
	return m.deleteErr
}

func (m *mockStore) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts)
}

func (m *mockStore) lists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

type mockCatalog struct {
	err error
}

func (c *mockCatalog) ListDoctors(context.Context) ([]reference.Doctor, error) {
	return []reference.Doctor{{ID: 1, Name: "Dr. Adams", Specialty: "Cardiology"}, {ID: 2, Name: "Dr. Baker"}}, c.err
}

func (c *mockCatalog) ListPatients(context.Context) ([]reference.Patient, error) {
	return []reference.Patient{{ID: 9, Name: "Pat"}, {ID: 10, Name: "Sam"}}, c.err
}

func (c *mockCatalog) ListPharmacies(context.Context) ([]reference.Pharmacy, error) {
	return []reference.Pharmacy{mainSt}, c.err
}

func (c *mockCatalog) ListDrugs(context.Context) ([]reference.Drug, error) {
	return []reference.Drug{acme, acmeCold, globex}, c.err
}

func (c *mockCatalog) Counts(context.Context) (*reference.Counts, error) {
	return &reference.Counts{}, c.err
}

// existing is stored prescription 5 for doctor 1 and patient 9.
func existing() Prescription {
	return Prescription{
		ID: 5, DoctorID: 1, DoctorName: "Dr. Adams", PatientID: 9, PatientName: "Pat",
		Pharmacy: mainSt, Date: "2024-03-01",
		Items: []LineItem{{Drug: acme, Quantity: 2}},
	}
}

func testSnapshot() *Snapshot {
	return &Snapshot{Prescriptions: []Prescription{existing()}}
}

// validDraft passes Validate.
func validDraft() *Draft {
	return &Draft{
		DoctorID:  2,
		PatientID: 10,
		Pharmacy:  mainSt,
		Date:      "2024-05-17",
		Items:     []LineItem{{Drug: acme, Quantity: 1}, {Drug: globex, Quantity: 3}},
	}
}
