package reference

import (
	"context"
	"fmt"
	"time"
)

// DateLayout is the wire format of contract dates.
const DateLayout = "2006-01-02"

// Doctor maps to the doctor table.
type Doctor struct {
	ID                int64  `db:"daid" json:"id"`
	Name              string `db:"dname" json:"name"`
	Specialty         string `db:"speciality" json:"specialty"`
	YearsOfExperience *int   `db:"years_of_experience" json:"years_of_experience,omitempty"`
}

// Patient maps to the patient table. PhysicianName is read from the
// primary physician's doctor row and ignored on writes.
type Patient struct {
	ID               int64   `db:"paid" json:"id"`
	Name             string  `db:"pname" json:"name"`
	Address          *string `db:"paddress" json:"address,omitempty"`
	Age              *int    `db:"page" json:"age,omitempty"`
	PrimaryPhysician *int64  `db:"primary_physician" json:"primary_physician,omitempty"`
	PhysicianName    *string `db:"physician_name" json:"physician_name,omitempty"`
}

// Pharmacy is identified by its (name, address) pair; there is no numeric key.
// The struct is comparable, so two values are the same pharmacy exactly when
// they are ==.
type Pharmacy struct {
	Name    string `db:"phname" json:"name"`
	Address string `db:"phaddress" json:"address"`
}

// Selected reports whether both halves of the key are set.
func (p Pharmacy) Selected() bool {
	return p.Name != "" && p.Address != ""
}

func (p Pharmacy) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Address)
}

// Drug is identified by its manufacturer and trade name.
type Drug struct {
	Company   string `db:"phcompany" json:"company"`
	TradeName string `db:"trade_name" json:"trade_name"`
}

// Selected reports whether both halves of the key are set.
func (d Drug) Selected() bool {
	return d.Company != "" && d.TradeName != ""
}

func (d Drug) String() string {
	return fmt.Sprintf("%s (%s)", d.TradeName, d.Company)
}

// PharmacyRecord is a pharmacy row with its contact details.
type PharmacyRecord struct {
	Pharmacy
	Phone *string `db:"phphone" json:"phone,omitempty"`
}

// Company maps to the pharmaceutical_company table.
type Company struct {
	Name  string  `db:"phcname" json:"name"`
	Phone *string `db:"phcphone" json:"phone,omitempty"`
}

// DrugRecord is a drug row joined with its manufacturer's phone number.
type DrugRecord struct {
	Drug
	Formula      *string `db:"formula" json:"formula,omitempty"`
	CompanyPhone *string `db:"company_phone" json:"company_phone,omitempty"`
}

// PharmacyDrug is the price a pharmacy sells a drug at.
type PharmacyDrug struct {
	Pharmacy     Pharmacy `json:"pharmacy"`
	Drug         Drug     `json:"drug"`
	Price        float64  `json:"price"`
	CompanyPhone *string  `json:"company_phone,omitempty"`
}

// ContractKey identifies a contract: one per pharmacy and company.
type ContractKey struct {
	Pharmacy Pharmacy `json:"pharmacy"`
	Company  string   `json:"company"`
}

// Contract is a supply agreement between a pharmacy and a pharmaceutical
// company. Dates are YYYY-MM-DD.
type Contract struct {
	ContractKey
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	Content       string  `json:"content"`
	Supervisor    string  `json:"supervisor"`
	PharmacyPhone *string `json:"pharmacy_phone,omitempty"`
}

// Counts backs the dashboard summary cards.
type Counts struct {
	Doctors       int `json:"doctors"`
	Patients      int `json:"patients"`
	Companies     int `json:"pharmaceutical_companies"`
	Drugs         int `json:"drugs"`
	Pharmacies    int `json:"pharmacies"`
	Prescriptions int `json:"prescriptions"`
}

// Snapshot is the set of lookup lists an edit session works against. It is
// never mutated after LoadSnapshot returns.
type Snapshot struct {
	Doctors    []Doctor   `json:"doctors"`
	Patients   []Patient  `json:"patients"`
	Pharmacies []Pharmacy `json:"pharmacies"`
	Drugs      []Drug     `json:"drugs"`
	FetchedAt  time.Time  `json:"fetched_at"`
}

// LoadSnapshot fetches all four reference lists.
func LoadSnapshot(ctx context.Context, c Catalog) (*Snapshot, error) {
	doctors, err := c.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	patients, err := c.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	pharmacies, err := c.ListPharmacies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pharmacies: %w", err)
	}
	drugs, err := c.ListDrugs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list drugs: %w", err)
	}
	return &Snapshot{
		Doctors:    doctors,
		Patients:   patients,
		Pharmacies: pharmacies,
		Drugs:      drugs,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (s *Snapshot) Doctor(id int64) (Doctor, bool) {
	if s == nil {
		return Doctor{}, false
	}
	for _, d := range s.Doctors {
		if d.ID == id {
			return d, true
		}
	}
	return Doctor{}, false
}

func (s *Snapshot) Patient(id int64) (Patient, bool) {
	if s == nil {
		return Patient{}, false
	}
	for _, p := range s.Patients {
		if p.ID == id {
			return p, true
		}
	}
	return Patient{}, false
}

func (s *Snapshot) HasPharmacy(p Pharmacy) bool {
	if s == nil {
		return false
	}
	for _, candidate := range s.Pharmacies {
		if candidate == p {
			return true
		}
	}
	return false
}

func (s *Snapshot) HasDrug(d Drug) bool {
	if s == nil {
		return false
	}
	for _, candidate := range s.Drugs {
		if candidate == d {
			return true
		}
	}
	return false
}
