package prescription

import (
	"errors"
	"testing"

	"github.com/rxdesk/rxdesk/internal/domain/reference"
)

func validationFailure(t *testing.T, d *Draft) *ValidationError {
	t.Helper()
	err := Validate(d)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	return ve
}

func TestValidate_ValidDraft(t *testing.T) {
	if err := Validate(validDraft()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Order(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Draft)
		field   string
		index   int
		message string
	}{
		{"doctor first", func(d *Draft) { d.DoctorID = 0; d.PatientID = 0 }, "doctor", 0, "Please select a doctor"},
		{"negative doctor is unselected", func(d *Draft) { d.DoctorID = -3 }, "doctor", 0, "Please select a doctor"},
		{"patient", func(d *Draft) { d.PatientID = 0; d.Pharmacy = reference.Pharmacy{} }, "patient", 0, "Please select a patient"},
		{"negative patient is unselected", func(d *Draft) { d.PatientID = -1 }, "patient", 0, "Please select a patient"},
		{"pharmacy before items", func(d *Draft) {
			d.Pharmacy = reference.Pharmacy{}
			d.Items = []LineItem{{}}
		}, "pharmacy", 0, "Please select a pharmacy"},
		{"pharmacy needs address", func(d *Draft) { d.Pharmacy.Address = "" }, "pharmacy", 0, "Please select a pharmacy"},
		{"missing date", func(d *Draft) { d.Date = "" }, "date", 0, "Please select a prescription date"},
		{"unparseable date", func(d *Draft) { d.Date = "2024-02-30" }, "date", 0, "Please select a prescription date"},
		{"no items", func(d *Draft) { d.Items = nil }, "items", 0, "Prescription must have at least one drug"},
		{"items checked in order", func(d *Draft) {
			d.Items[0].Quantity = 0
			d.Items[1].Drug = reference.Drug{}
		}, "quantity", 1, "Please enter a valid quantity for drug #1"},
		{"drug before quantity", func(d *Draft) {
			d.Items[0] = LineItem{}
		}, "drug", 1, "Please select drug #1"},
		{"second drug missing", func(d *Draft) { d.Items[1].Drug = reference.Drug{Company: "Globex"} }, "drug", 2, "Please select drug #2"},
		{"quantity before duplicate", func(d *Draft) {
			d.Items[1].Drug = acme
			d.Items[1].Quantity = -1
		}, "quantity", 2, "Please enter a valid quantity for drug #2"},
		{"duplicate", func(d *Draft) { d.Items[1].Drug = acme }, "items", 0, "Duplicate drugs are not allowed in the same prescription"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(d)
			ve := validationFailure(t, d)
			if ve.Field != tt.field || ve.Index != tt.index || ve.Message != tt.message {
				t.Errorf("got %+v, want field=%s index=%d message=%q", ve, tt.field, tt.index, tt.message)
			}
		})
	}
}

func TestValidate_SameDrugDifferentCompany(t *testing.T) {
	d := validDraft()
	// acme and globex share a trade name but are different drugs
	if d.Items[0].Drug.TradeName != d.Items[1].Drug.TradeName {
		t.Fatal("fixture should share trade names")
	}
	if err := Validate(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SingleDuplicateError(t *testing.T) {
	d := validDraft()
	d.Items = []LineItem{{Drug: acme, Quantity: 1}, {Drug: acme, Quantity: 2}, {Drug: globex, Quantity: 1}, {Drug: globex, Quantity: 1}}
	ve := validationFailure(t, d)
	if ve.Message != msgDuplicate || ve.Index != 0 {
		t.Errorf("expected one aggregate duplicate error, got %+v", ve)
	}
}
