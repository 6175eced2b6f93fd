package services

import (
	"regexp"

	"github.com/oakmart/checkout/internal/domain"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// ISO 3166-1 alpha-2 shape; Normalize has already uppercased the value.
	countryCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)
)

// Form field keys as rendered by the storefront.
const (
	FieldEmail       = "email"
	FieldFirstName   = "firstName"
	FieldLastName    = "lastName"
	FieldCompany     = "company"
	FieldStreet      = "street"
	FieldCity        = "city"
	FieldRegion      = "region"
	FieldPostalCode  = "postalCode"
	FieldCountryCode = "countryCode"
	FieldPhone       = "phone"
)

// ValidateGuestForm checks the guest contact and shipping fields. It is
// pure and synchronous. Every field is validated independently so all
// errors surface together; only the first failing rule per field is
// reported. A nil map means the form is valid.
func ValidateGuestForm(address domain.GuestAddress) map[string]string {
	address = address.Normalize()

	fieldErrors := make(map[string]string)

	switch {
	case address.Email == "":
		fieldErrors[FieldEmail] = "email is required"
	case !emailPattern.MatchString(address.Email):
		fieldErrors[FieldEmail] = "email format is invalid"
	}

	requireField(fieldErrors, FieldFirstName, address.FirstName, "first name is required")
	requireField(fieldErrors, FieldLastName, address.LastName, "last name is required")
	requireField(fieldErrors, FieldCompany, address.Company, "company is required")
	requireField(fieldErrors, FieldStreet, address.Street, "street is required")
	requireField(fieldErrors, FieldCity, address.City, "city is required")
	requireField(fieldErrors, FieldRegion, address.Region, "region is required")
	requireField(fieldErrors, FieldPostalCode, address.PostalCode, "postal code is required")
	switch {
	case address.CountryCode == "":
		fieldErrors[FieldCountryCode] = "country code is required"
	case !countryCodePattern.MatchString(address.CountryCode):
		fieldErrors[FieldCountryCode] = "country code must be a two-letter code"
	}

	requireField(fieldErrors, FieldPhone, address.Phone, "phone is required")

	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

func requireField(fieldErrors map[string]string, field, value, message string) {
	if value == "" {
		fieldErrors[field] = message
	}
}
