package roles

// Capability names a UI action gated by role.
type Capability string

const (
	CapRead   Capability = "employees.read"
	CapCreate Capability = "employees.create"
	CapEdit   Capability = "employees.edit"
	CapRemove Capability = "employees.remove"
)

// CanCreate reports whether r may create employees.
func CanCreate(r Role) bool {
	return r == Director || r == Leader
}

// CanEdit reports whether r may edit employees.
func CanEdit(r Role) bool {
	return r == Director || r == Leader
}

// CanRemove reports whether r may remove employees.
func CanRemove(r Role) bool {
	return r == Director
}

// CanRead reports whether r may list and view employees.
func CanRead(r Role) bool {
	return r.Valid()
}

// Allows evaluates a capability for r. Unknown capabilities are denied.
func Allows(r Role, c Capability) bool {
	switch c {
	case CapRead:
		return CanRead(r)
	case CapCreate:
		return CanCreate(r)
	case CapEdit:
		return CanEdit(r)
	case CapRemove:
		return CanRemove(r)
	default:
		return false
	}
}

// Capabilities is the resolved predicate set for a role, convenient for
// templates.
type Capabilities struct {
	Create bool
	Edit   bool
	Remove bool
}

// For resolves the predicate set for r.
func For(r Role) Capabilities {
	return Capabilities{
		Create: CanCreate(r),
		Edit:   CanEdit(r),
		Remove: CanRemove(r),
	}
}
