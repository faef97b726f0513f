// Package roles defines the closed role enumeration shared by the console
// and the employee API, together with the capability predicates that gate
// UI actions.
package roles

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Role is the numeric role code used on the wire.
type Role int

const (
	// Unknown is the zero value and never a valid role.
	Unknown Role = 0
	// Director may create, edit and remove employees.
	Director Role = 1
	// Leader may create and edit employees.
	Leader Role = 2
	// Employee has read-only access.
	Employee Role = 3
)

// ErrInvalidRole is returned when a value does not name a known role.
var ErrInvalidRole = errors.New("roles: invalid role")

var names = map[Role]string{
	Director: "Director",
	Leader:   "Leader",
	Employee: "Employee",
}

// All lists the valid roles in display order.
func All() []Role {
	return []Role{Director, Leader, Employee}
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := names[r]
	return ok
}

// Code returns the wire code.
func (r Role) Code() int {
	return int(r)
}

// String returns the role name, or "Unknown".
func (r Role) String() string {
	if name, ok := names[r]; ok {
		return name
	}
	return "Unknown"
}

// FromCode maps a wire code back to a role.
func FromCode(code int) (Role, error) {
	r := Role(code)
	if !r.Valid() {
		return Unknown, fmt.Errorf("%w: code %d", ErrInvalidRole, code)
	}
	return r, nil
}

// Parse accepts either a role name (case-insensitive) or its numeric code
// rendered as a string. Token claims use both forms.
func Parse(value string) (Role, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Unknown, ErrInvalidRole
	}
	if code, err := strconv.Atoi(value); err == nil {
		return FromCode(code)
	}
	for r, name := range names {
		if strings.EqualFold(name, value) {
			return r, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrInvalidRole, value)
}

// MarshalJSON encodes the role as its numeric code.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: code %d", ErrInvalidRole, int(r))
	}
	return []byte(strconv.Itoa(int(r))), nil
}

// UnmarshalJSON decodes a numeric role code. String literals from the
// older wire format are rejected so both directions share one encoding.
func (r *Role) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRole, string(data))
	}
	parsed, err := FromCode(code)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
