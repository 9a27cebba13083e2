package prescription

import (
	"fmt"

	"github.com/rxdesk/rxdesk/internal/domain/reference"
)

const (
	msgDoctor     = "Please select a doctor"
	msgPatient    = "Please select a patient"
	msgPharmacy   = "Please select a pharmacy"
	msgDate       = "Please select a prescription date"
	msgDuplicate  = "Duplicate drugs are not allowed in the same prescription"
	msgLastItem   = "Prescription must have at least one drug"
	fmtDrugMiss   = "Please select drug #%d"
	fmtQtyInvalid = "Please enter a valid quantity for drug #%d"
)

// Validate runs the pre-submit checks in order and returns the first
// failure as a *ValidationError, or nil.
func Validate(d *Draft) error {
	if d.DoctorID <= 0 {
		return &ValidationError{Field: "doctor", Message: msgDoctor}
	}
	if d.PatientID <= 0 {
		return &ValidationError{Field: "patient", Message: msgPatient}
	}
	if !d.Pharmacy.Selected() {
		return &ValidationError{Field: "pharmacy", Message: msgPharmacy}
	}
	if d.Date == "" {
		return &ValidationError{Field: "date", Message: msgDate}
	}
	if _, err := parseDate(d.Date); err != nil {
		return &ValidationError{Field: "date", Message: msgDate}
	}
	if len(d.Items) == 0 {
		return &ValidationError{Field: "items", Message: msgLastItem}
	}
	for i, it := range d.Items {
		if !it.Drug.Selected() {
			return &ValidationError{Field: "drug", Index: i + 1, Message: fmt.Sprintf(fmtDrugMiss, i+1)}
		}
		if it.Quantity < 1 {
			return &ValidationError{Field: "quantity", Index: i + 1, Message: fmt.Sprintf(fmtQtyInvalid, i+1)}
		}
	}
	seen := make(map[reference.Drug]struct{}, len(d.Items))
	for _, it := range d.Items {
		if _, dup := seen[it.Drug]; dup {
			return &ValidationError{Field: "items", Message: msgDuplicate}
		}
		seen[it.Drug] = struct{}{}
	}
	return nil
}
