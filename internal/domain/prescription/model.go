package prescription

import (
	"strconv"
	"strings"
	"time"

	"github.com/rxdesk/rxdesk/internal/domain/reference"
)

// DateLayout is the wire and storage format of a prescription date.
const DateLayout = "2006-01-02"

// LineItem is one (company, drug, quantity) entry of a prescription.
type LineItem struct {
	Drug     reference.Drug `json:"drug"`
	Quantity int            `json:"quantity"`
}

func blankItem() LineItem {
	return LineItem{Quantity: 1}
}

// Draft is an unsaved prescription. ID is nil while creating. A DoctorID
// or PatientID that is not positive means nothing is selected.
type Draft struct {
	ID        *int64             `json:"id,omitempty"`
	DoctorID  int64              `json:"doctor_id"`
	PatientID int64              `json:"patient_id"`
	Pharmacy  reference.Pharmacy `json:"pharmacy"`
	Date      string             `json:"date"`
	Items     []LineItem         `json:"items"`
}

// IsEdit reports whether the draft was hydrated from a stored prescription.
func (d *Draft) IsEdit() bool {
	return d.ID != nil
}

func (d *Draft) clone() *Draft {
	cp := *d
	if d.ID != nil {
		id := *d.ID
		cp.ID = &id
	}
	cp.Items = append([]LineItem(nil), d.Items...)
	return &cp
}

// ToUpsertRequest flattens the draft into the payload of the remote
// add-or-replace call.
func (d *Draft) ToUpsertRequest() UpsertRequest {
	lines := make([]DrugLine, 0, len(d.Items))
	for _, it := range d.Items {
		lines = append(lines, DrugLine{
			Company:  it.Drug.Company,
			Name:     it.Drug.TradeName,
			Quantity: it.Quantity,
		})
	}
	return UpsertRequest{
		DoctorID:        d.DoctorID,
		PatientID:       d.PatientID,
		PharmacyName:    d.Pharmacy.Name,
		PharmacyAddress: d.Pharmacy.Address,
		Date:            d.Date,
		Items:           lines,
	}
}

// Prescription is a stored prescription as read back from the data layer.
type Prescription struct {
	ID          int64              `json:"id"`
	DoctorID    int64              `json:"doctor_id"`
	DoctorName  string             `json:"doctor_name"`
	PatientID   int64              `json:"patient_id"`
	PatientName string             `json:"patient_name"`
	Pharmacy    reference.Pharmacy `json:"pharmacy"`
	Date        string             `json:"date"`
	Items       []LineItem         `json:"items"`
}

// DrugLine is the serialized form of a line item sent to add_prescription.
type DrugLine struct {
	Company  string `json:"company"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type UpsertRequest struct {
	DoctorID        int64      `json:"doctor_id"`
	PatientID       int64      `json:"patient_id"`
	PharmacyName    string     `json:"pharmacy_name"`
	PharmacyAddress string     `json:"pharmacy_address"`
	Date            string     `json:"date"`
	Items           []DrugLine `json:"items"`
}

// ParseQuantity turns raw user input into a quantity. Anything that is not
// a positive integer becomes 1.
func ParseQuantity(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Snapshot is what an editor checks drafts against: the reference lists
// plus every stored prescription, fetched together.
type Snapshot struct {
	Reference     *reference.Snapshot `json:"reference"`
	Prescriptions []Prescription      `json:"prescriptions"`
}

// Prescription returns the stored prescription with the given id.
func (s *Snapshot) Prescription(id int64) (Prescription, bool) {
	if s == nil {
		return Prescription{}, false
	}
	for _, p := range s.Prescriptions {
		if p.ID == id {
			return p, true
		}
	}
	return Prescription{}, false
}

// Conflict finds a stored prescription for the same doctor and patient
// other than exclude. The snapshot may be stale, so the result is advisory:
// the data layer enforces one prescription per pair.
func (s *Snapshot) Conflict(doctorID, patientID int64, exclude *int64) *Prescription {
	if s == nil || doctorID <= 0 || patientID <= 0 {
		return nil
	}
	for i := range s.Prescriptions {
		p := &s.Prescriptions[i]
		if p.DoctorID != doctorID || p.PatientID != patientID {
			continue
		}
		if exclude != nil && p.ID == *exclude {
			continue
		}
		cp := *p
		return &cp
	}
	return nil
}
