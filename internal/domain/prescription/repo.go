package prescription

import "context"

// Store is the write side of the data layer plus the prescription list.
// UpsertPrescription adds a prescription or replaces the one already held
// for the same doctor and patient; the remote side owns that transaction.
type Store interface {
	ListPrescriptions(ctx context.Context) ([]Prescription, error)
	UpsertPrescription(ctx context.Context, req UpsertRequest) error
	DeletePrescription(ctx context.Context, id int64) error
}
