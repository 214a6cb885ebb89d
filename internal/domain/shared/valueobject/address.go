package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pawmarket/backend/internal/domain/shared"
)

// zipPattern matches a fixed-length numeric postal code
var zipPattern = regexp.MustCompile(`^\d{5}$`)

// ShippingAddress is an immutable value object describing where an order
// is delivered. All fields are required; the zip code must be 5 digits.
type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// NewShippingAddress creates and validates a shipping address
func NewShippingAddress(street, city, state, zipCode, country string) (ShippingAddress, error) {
	street = strings.TrimSpace(street)
	city = strings.TrimSpace(city)
	state = strings.TrimSpace(state)
	zipCode = strings.TrimSpace(zipCode)
	country = strings.TrimSpace(country)

	if street == "" {
		return ShippingAddress{}, shared.NewDomainError("VALIDATION_ERROR", "Street is required")
	}
	if city == "" {
		return ShippingAddress{}, shared.NewDomainError("VALIDATION_ERROR", "City is required")
	}
	if state == "" {
		return ShippingAddress{}, shared.NewDomainError("VALIDATION_ERROR", "State is required")
	}
	if !zipPattern.MatchString(zipCode) {
		return ShippingAddress{}, shared.NewDomainError("VALIDATION_ERROR", "Zip code must be 5 digits")
	}
	if country == "" {
		return ShippingAddress{}, shared.NewDomainError("VALIDATION_ERROR", "Country is required")
	}

	return ShippingAddress{
		Street:  street,
		City:    city,
		State:   state,
		ZipCode: zipCode,
		Country: country,
	}, nil
}

// IsEmpty returns true if no field is set
func (a ShippingAddress) IsEmpty() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.ZipCode == "" && a.Country == ""
}

// String returns a single-line representation
func (a ShippingAddress) String() string {
	return fmt.Sprintf("%s, %s, %s %s, %s", a.Street, a.City, a.State, a.ZipCode, a.Country)
}

// Equals compares all fields
func (a ShippingAddress) Equals(other ShippingAddress) bool {
	return a == other
}

// Value implements driver.Valuer; the address is stored as a JSON document
func (a ShippingAddress) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner
func (a *ShippingAddress) Scan(value any) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ShippingAddress", value)
	}
	return json.Unmarshal(data, a)
}
