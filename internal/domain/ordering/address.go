package ordering

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Field names one input of an address draft
type Field string

const (
	FieldSalutation  Field = "salutation"
	FieldFirstName   Field = "first_name"
	FieldLastName    Field = "last_name"
	FieldCompany     Field = "company"
	FieldStreet      Field = "street"
	FieldHouseNumber Field = "house_number"
	FieldPostalCode  Field = "postal_code"
	FieldCity        Field = "city"
	FieldCountry     Field = "country"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
)

// AllFields lists every address field in form order
var AllFields = []Field{
	FieldSalutation,
	FieldFirstName,
	FieldLastName,
	FieldCompany,
	FieldStreet,
	FieldHouseNumber,
	FieldPostalCode,
	FieldCity,
	FieldCountry,
	FieldEmail,
	FieldPhone,
}

// ParseField converts a wire name into a Field
func ParseField(s string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllFields {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// Salutation values
const (
	SalutationMr      = "mr"
	SalutationMs      = "ms"
	SalutationMx      = "mx"
	SalutationCompany = "company"
)

// Country is one of the two supported delivery countries
type Country string

const (
	// CountryDomestic uses five digit postal codes
	CountryDomestic Country = "DE"
	// CountryNeighboring uses four digit postal codes
	CountryNeighboring Country = "AT"
)

// IsValid checks the enum
func (c Country) IsValid() bool {
	return c == CountryDomestic || c == CountryNeighboring
}

// AddressDraft is the editable postal and contact data of an order.
type AddressDraft struct {
	Salutation  string  `json:"salutation"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Company     string  `json:"company,omitempty"`
	Street      string  `json:"street"`
	HouseNumber string  `json:"house_number"`
	PostalCode  string  `json:"postal_code"`
	City        string  `json:"city"`
	Country     Country `json:"country"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone,omitempty"`
}

// NewAddressDraft returns an empty draft defaulting to the domestic country
func NewAddressDraft() AddressDraft {
	return AddressDraft{Country: CountryDomestic}
}

// IsCompany reports whether the draft addresses a company
func (a AddressDraft) IsCompany() bool {
	return a.Salutation == SalutationCompany
}

// Get returns the raw value of a field
func (a AddressDraft) Get(f Field) string {
	switch f {
	case FieldSalutation:
		return a.Salutation
	case FieldFirstName:
		return a.FirstName
	case FieldLastName:
		return a.LastName
	case FieldCompany:
		return a.Company
	case FieldStreet:
		return a.Street
	case FieldHouseNumber:
		return a.HouseNumber
	case FieldPostalCode:
		return a.PostalCode
	case FieldCity:
		return a.City
	case FieldCountry:
		return string(a.Country)
	case FieldEmail:
		return a.Email
	case FieldPhone:
		return a.Phone
	}
	return ""
}

// With returns a copy of the draft with one field replaced
func (a AddressDraft) With(f Field, value string) AddressDraft {
	switch f {
	case FieldSalutation:
		a.Salutation = strings.ToLower(value)
	case FieldFirstName:
		a.FirstName = value
	case FieldLastName:
		a.LastName = value
	case FieldCompany:
		a.Company = value
	case FieldStreet:
		a.Street = value
	case FieldHouseNumber:
		a.HouseNumber = value
	case FieldPostalCode:
		a.PostalCode = value
	case FieldCity:
		a.City = value
	case FieldCountry:
		a.Country = Country(strings.ToUpper(value))
	case FieldEmail:
		a.Email = value
	case FieldPhone:
		a.Phone = value
	}
	return a
}

// Value stores the draft as a JSON column
func (a AddressDraft) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan reads a JSON column into the draft
func (a *AddressDraft) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*a = NewAddressDraft()
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into AddressDraft", value)
	}
	if len(data) == 0 || string(data) == "null" {
		*a = NewAddressDraft()
		return nil
	}
	return json.Unmarshal(data, a)
}
