package employees

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/employee-console/internal/roles"
)

// DateLayout is the wire and form layout for birth dates.
const DateLayout = "2006-01-02"

// ErrInvalidPhoneType is returned for phone type codes outside the enumeration.
var ErrInvalidPhoneType = errors.New("employees: invalid phone type")

// PhoneType enumerates phone kinds, numeric on the wire.
type PhoneType int

const (
	PhoneUnknown PhoneType = 0
	PhoneMobile  PhoneType = 1
	PhoneHome    PhoneType = 2
	PhoneWork    PhoneType = 3
)

var phoneTypeNames = map[PhoneType]string{
	PhoneMobile: "Mobile",
	PhoneHome:   "Home",
	PhoneWork:   "Work",
}

// PhoneTypes lists valid phone types in display order.
func PhoneTypes() []PhoneType {
	return []PhoneType{PhoneMobile, PhoneHome, PhoneWork}
}

// Valid reports whether t is a member of the enumeration.
func (t PhoneType) Valid() bool {
	_, ok := phoneTypeNames[t]
	return ok
}

// Code returns the wire code, also used as the form option value.
func (t PhoneType) Code() int { return int(t) }

func (t PhoneType) String() string {
	if name, ok := phoneTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// ParsePhoneType accepts a name (case-insensitive) or a numeric code.
func ParsePhoneType(value string) (PhoneType, error) {
	value = strings.TrimSpace(value)
	if code, err := strconv.Atoi(value); err == nil {
		t := PhoneType(code)
		if !t.Valid() {
			return PhoneUnknown, fmt.Errorf("%w: %d", ErrInvalidPhoneType, code)
		}
		return t, nil
	}
	for t, name := range phoneTypeNames {
		if strings.EqualFold(name, value) {
			return t, nil
		}
	}
	return PhoneUnknown, fmt.Errorf("%w: %q", ErrInvalidPhoneType, value)
}

func (t PhoneType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPhoneType, int(t))
	}
	return []byte(strconv.Itoa(int(t))), nil
}

func (t *PhoneType) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPhoneType, data)
	}
	parsed := PhoneType(code)
	if !parsed.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPhoneType, code)
	}
	*t = parsed
	return nil
}

// Phone is owned by exactly one employee; order is preserved round-trip.
type Phone struct {
	Number string    `json:"number"`
	Type   PhoneType `json:"type"`
}

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseDate accepts YYYY-MM-DD and the datetime forms APIs commonly emit.
func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Date{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			y, m, d := t.Date()
			return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}, nil
		}
	}
	return Date{}, fmt.Errorf("employees: invalid date %q", value)
}

// NewDate builds a Date in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("employees: date must be a string: %w", err)
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Employee mirrors the API resource.
type Employee struct {
	ID        string     `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	FullName  string     `json:"fullName,omitempty"`
	Email     string     `json:"email"`
	DocNumber string     `json:"docNumber"`
	Role      roles.Role `json:"role"`
	BirthDate Date       `json:"birthDate"`
	Phones    []Phone    `json:"phones"`
}

// DisplayName prefers the server-computed full name.
func (e Employee) DisplayName() string {
	if name := strings.TrimSpace(e.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// CreatePayload is the body of POST /employees.
type CreatePayload struct {
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	DocNumber string     `json:"docNumber"`
	Role      roles.Role `json:"role"`
	BirthDate Date       `json:"birthDate"`
	Phones    []Phone    `json:"phones"`
	Password  string     `json:"password"`
}

// UpdatePayload is the body of PUT /employees/{id}. The role travels only
// through NewRole, which the API applies under its own ownership rules.
type UpdatePayload struct {
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Email     string      `json:"email"`
	DocNumber string      `json:"docNumber"`
	BirthDate Date        `json:"birthDate"`
	Phones    []Phone     `json:"phones"`
	IsOwner   bool        `json:"isOwner"`
	NewRole   *roles.Role `json:"newRole,omitempty"`
}
