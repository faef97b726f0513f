package employees

import (
	"net/url"
	"strings"

	"github.com/odyssey-erp/employee-console/internal/roles"
	"github.com/odyssey-erp/employee-console/internal/session"
)

// PhoneForm is one submitted phone row.
type PhoneForm struct {
	Number string    `form:"number" validate:"min=5"`
	Type   PhoneType `form:"type" validate:"phonetype"`
}

// EmployeeForm carries the create/edit form values after parsing.
type EmployeeForm struct {
	FirstName string      `form:"firstName" validate:"required"`
	LastName  string      `form:"lastName" validate:"required"`
	Email     string      `form:"email" validate:"required,email"`
	DocNumber string      `form:"docNumber" validate:"min=3"`
	Role      roles.Role  `form:"role" validate:"role"`
	BirthDate string      `form:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Password  string      `form:"password" validate:"omitempty,min=6"`
	Phones    []PhoneForm `form:"phones" validate:"dive"`
}

// FormFromValues reads posted values. Phone rows come as parallel
// phoneNumber/phoneType arrays; rows with both cells blank are skipped.
// Unparseable enum values are kept as Unknown so validation reports them.
func FormFromValues(values url.Values) EmployeeForm {
	form := EmployeeForm{
		FirstName: strings.TrimSpace(values.Get("firstName")),
		LastName:  strings.TrimSpace(values.Get("lastName")),
		Email:     strings.TrimSpace(values.Get("email")),
		DocNumber: strings.TrimSpace(values.Get("docNumber")),
		BirthDate: strings.TrimSpace(values.Get("birthDate")),
		Password:  values.Get("password"),
	}
	form.Role, _ = roles.Parse(values.Get("role"))

	numbers := values["phoneNumber"]
	types := values["phoneType"]
	for i, number := range numbers {
		number = strings.TrimSpace(number)
		rawType := ""
		if i < len(types) {
			rawType = strings.TrimSpace(types[i])
		}
		if number == "" && rawType == "" {
			continue
		}
		phoneType, _ := ParsePhoneType(rawType)
		form.Phones = append(form.Phones, PhoneForm{Number: number, Type: phoneType})
	}
	return form
}

// FormFromEmployee prefills the edit form.
func FormFromEmployee(e Employee) EmployeeForm {
	form := EmployeeForm{
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Email:     e.Email,
		DocNumber: e.DocNumber,
		Role:      e.Role,
		BirthDate: e.BirthDate.String(),
	}
	for _, p := range e.Phones {
		form.Phones = append(form.Phones, PhoneForm{Number: p.Number, Type: p.Type})
	}
	return form
}

func (f EmployeeForm) phones() []Phone {
	phones := make([]Phone, 0, len(f.Phones))
	for _, p := range f.Phones {
		phones = append(phones, Phone{Number: p.Number, Type: p.Type})
	}
	return phones
}

func (f EmployeeForm) birthDate() Date {
	date, _ := ParseDate(f.BirthDate)
	return date
}

// NewCreatePayload maps a validated form to the create body.
func NewCreatePayload(form EmployeeForm) CreatePayload {
	return CreatePayload{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		DocNumber: form.DocNumber,
		Role:      form.Role,
		BirthDate: form.birthDate(),
		Phones:    form.phones(),
		Password:  form.Password,
	}
}

// NewUpdatePayload maps a validated form to the update body. IsOwner is set
// when the actor edits their own record; NewRole only when the role changes.
func NewUpdatePayload(form EmployeeForm, current Employee, actor *session.Identity) UpdatePayload {
	payload := UpdatePayload{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		DocNumber: form.DocNumber,
		BirthDate: form.birthDate(),
		Phones:    form.phones(),
		IsOwner:   isOwner(current, actor),
	}
	if form.Role.Valid() && form.Role != current.Role {
		role := form.Role
		payload.NewRole = &role
	}
	return payload
}

func isOwner(current Employee, actor *session.Identity) bool {
	if actor == nil {
		return false
	}
	if actor.SubjectID != "" && actor.SubjectID == current.ID {
		return true
	}
	return actor.Email != "" && strings.EqualFold(actor.Email, current.Email)
}
