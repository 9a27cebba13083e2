package reference

import "strings"

const (
	msgAllFields = "All fields are required"
	msgPrice     = "Price is required"
	msgDates     = "Contract dates must be calendar dates (YYYY-MM-DD)"
	msgDateOrder = "Contract end date must not be before its start date"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: msgAllFields}
	}
	return nil
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func validateDoctor(d Doctor) error {
	if d.ID <= 0 {
		return &ValidationError{Field: "id", Message: msgAllFields}
	}
	if d.YearsOfExperience != nil && *d.YearsOfExperience < 0 {
		return &ValidationError{Field: "years_of_experience", Message: "Years of experience cannot be negative"}
	}
	return firstError(required("name", d.Name), required("specialty", d.Specialty))
}

func validatePatient(p Patient) error {
	if p.ID <= 0 {
		return &ValidationError{Field: "id", Message: msgAllFields}
	}
	if p.Age != nil && *p.Age < 0 {
		return &ValidationError{Field: "age", Message: "Age cannot be negative"}
	}
	return required("name", p.Name)
}

func validatePharmacyKey(p Pharmacy) error {
	return firstError(required("name", p.Name), required("address", p.Address))
}

func validateDrugKey(d Drug) error {
	return firstError(required("company", d.Company), required("trade_name", d.TradeName))
}

func validatePharmacyDrug(pd PharmacyDrug) error {
	if err := firstError(validatePharmacyKey(pd.Pharmacy), validateDrugKey(pd.Drug)); err != nil {
		return err
	}
	if pd.Price <= 0 {
		return &ValidationError{Field: "price", Message: msgPrice}
	}
	return nil
}

func validateContractKey(k ContractKey) error {
	return firstError(validatePharmacyKey(k.Pharmacy), required("company", k.Company))
}

func validateContract(c Contract) error {
	if err := firstError(
		validateContractKey(c.ContractKey),
		required("start_date", c.StartDate),
		required("end_date", c.EndDate),
		required("content", c.Content),
		required("supervisor", c.Supervisor),
	); err != nil {
		return err
	}
	start, err := parseDate(c.StartDate)
	if err != nil {
		return &ValidationError{Field: "start_date", Message: msgDates}
	}
	end, err := parseDate(c.EndDate)
	if err != nil {
		return &ValidationError{Field: "end_date", Message: msgDates}
	}
	if end.Before(start) {
		return &ValidationError{Field: "end_date", Message: msgDateOrder}
	}
	return nil
}
