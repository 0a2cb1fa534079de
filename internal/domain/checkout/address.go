package checkout

import (
	"fmt"
	"strings"
)

// Address is the delivery address collected at the address step. Division is
// only required by the fish-order backend and may be empty otherwise.
type Address struct {
	Name       string
	Phone      string
	Division   string
	District   string
	Upazila    string
	Street     string
	PostalCode string
}

// MissingFieldError names the first structurally missing address field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("address field %q is required", e.Field)
}

// Validate checks structural completeness: every required field non-blank
// and a plausible Bangladeshi mobile number.
func (a Address) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"name", a.Name},
		{"phone", a.Phone},
		{"district", a.District},
		{"upazila", a.Upazila},
		{"street", a.Street},
		{"postalCode", a.PostalCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &MissingFieldError{Field: f.field}
		}
	}

	phone := strings.TrimSpace(a.Phone)
	phone = strings.TrimPrefix(phone, "+88")
	if len(phone) != 11 || !strings.HasPrefix(phone, "01") {
		return &MissingFieldError{Field: "phone"}
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return &MissingFieldError{Field: "phone"}
		}
	}
	return nil
}
