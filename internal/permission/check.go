package permission

import "fmt"

// Has reports whether the granted level satisfies the required level.
// The comparison is the ordinal ordering, so Has(x, x) is always true.
func Has(granted, required Level) bool {
	return granted >= required
}

// CanView reports read access or better.
func CanView(l Level) bool { return Has(l, Read) }

// CanEdit reports write access or better.
func CanEdit(l Level) bool { return Has(l, Write) }

// CanAdmin reports full access.
func CanAdmin(l Level) bool { return Has(l, Admin) }

// Highest returns the maximum level among the inputs. An empty list
// yields None, the identity element of the lattice.
func Highest(levels []Level) Level {
	highest := None
	for _, l := range levels {
		if Has(l, highest) {
			highest = l
		}
	}
	return highest
}

// Check is the structured result of a permission comparison. Reason is
// populated only when access is denied.
type Check struct {
	HasAccess  bool   `json:"hasAccess"`
	Permission Level  `json:"permission"`
	Reason     string `json:"reason,omitempty"`
}

// CheckLevel compares granted against required and carries a
// human-readable denial reason when the check fails.
func CheckLevel(granted, required Level) Check {
	if Has(granted, required) {
		return Check{HasAccess: true, Permission: granted}
	}
	return Check{
		HasAccess:  false,
		Permission: granted,
		Reason:     fmt.Sprintf("Insufficient permissions. Required: %s, granted: %s", required, granted),
	}
}

// Access is the derived per-app view consumed by UI gating.
type Access struct {
	HasAccess  bool  `json:"hasAccess"`
	CanView    bool  `json:"canView"`
	CanEdit    bool  `json:"canEdit"`
	CanAdmin   bool  `json:"canAdmin"`
	Permission Level `json:"permission"`
}

// AccessFor expands a level into the full access view.
func AccessFor(l Level) Access {
	return Access{
		HasAccess:  l != None,
		CanView:    CanView(l),
		CanEdit:    CanEdit(l),
		CanAdmin:   CanAdmin(l),
		Permission: l,
	}
}
