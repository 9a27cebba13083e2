package reference

import "context"

// Catalog is the read side of the data layer for lookup lists. Lists come
// back in display order.
type Catalog interface {
	ListDoctors(ctx context.Context) ([]Doctor, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	ListPharmacies(ctx context.Context) ([]Pharmacy, error)
	ListDrugs(ctx context.Context) ([]Drug, error)
	Counts(ctx context.Context) (*Counts, error)
}

type DoctorStore interface {
	AddDoctor(ctx context.Context, d Doctor) error
	UpdateDoctor(ctx context.Context, d Doctor) error
	DeleteDoctor(ctx context.Context, id int64) error
}

type PatientStore interface {
	AddPatient(ctx context.Context, p Patient) error
	UpdatePatient(ctx context.Context, p Patient) error
	DeletePatient(ctx context.Context, id int64) error
}

type PharmacyStore interface {
	ListPharmacyRecords(ctx context.Context) ([]PharmacyRecord, error)
	AddPharmacy(ctx context.Context, p PharmacyRecord) error
	UpdatePharmacy(ctx context.Context, p PharmacyRecord) error
	DeletePharmacy(ctx context.Context, key Pharmacy) error
}

type CompanyStore interface {
	ListCompanies(ctx context.Context) ([]Company, error)
	AddCompany(ctx context.Context, c Company) error
	UpdateCompany(ctx context.Context, c Company) error
	DeleteCompany(ctx context.Context, name string) error
}

// DrugStore lists drug records; a non-empty company limits the list to
// that manufacturer.
type DrugStore interface {
	ListDrugRecords(ctx context.Context, company string) ([]DrugRecord, error)
	AddDrug(ctx context.Context, d DrugRecord) error
	UpdateDrug(ctx context.Context, d DrugRecord) error
	DeleteDrug(ctx context.Context, key Drug) error
}

// PharmacyDrugStore lists prices; a non-empty search matches pharmacy names
// case-insensitively by substring.
type PharmacyDrugStore interface {
	ListPharmacyDrugs(ctx context.Context, search string) ([]PharmacyDrug, error)
	AddPharmacyDrug(ctx context.Context, pd PharmacyDrug) error
	UpdatePharmacyDrug(ctx context.Context, pd PharmacyDrug) error
	DeletePharmacyDrug(ctx context.Context, pharmacy Pharmacy, drug Drug) error
}

type ContractStore interface {
	ListContracts(ctx context.Context) ([]Contract, error)
	AddContract(ctx context.Context, c Contract) error
	UpdateContract(ctx context.Context, c Contract) error
	DeleteContract(ctx context.Context, key ContractKey) error
}

// Registry is the whole reference data layer. Writes go through database
// functions that own referential integrity.
type Registry interface {
	Catalog
	DoctorStore
	PatientStore
	PharmacyStore
	CompanyStore
	DrugStore
	PharmacyDrugStore
	ContractStore
}
