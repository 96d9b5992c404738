package permission

import (
	"encoding/json"
	"fmt"
)

// Level is an ordinal app permission level. Higher values grant strictly
// more access; the zero value is None.
type Level int

const (
	None Level = iota
	Read
	Write
	Admin
)

var levelNames = [...]string{"none", "read", "write", "admin"}

// Levels returns every level in ascending order.
func Levels() []Level {
	return []Level{None, Read, Write, Admin}
}

// ParseLevel converts the wire representation into a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if s == name {
			return Level(i), nil
		}
	}
	return None, fmt.Errorf("permission: unknown level %q", s)
}

func (l Level) String() string {
	if l < None || l > Admin {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether the level is a member of the closed set.
func (l Level) Valid() bool {
	return l >= None && l <= Admin
}

// Label returns the human-readable name shown in settings UIs.
func (l Level) Label() string {
	switch l {
	case None:
		return "No Access"
	case Read:
		return "View Only"
	case Write:
		return "Can Edit"
	case Admin:
		return "Full Access"
	default:
		return l.String()
	}
}

func (l Level) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("permission: cannot marshal invalid level %d", int(l))
	}
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// App identifies one of the registered applications. The set is closed;
// permissions are always scoped per (member, app) pair.
type App string

const (
	AppPrecision App = "precision"
	AppMomentum  App = "momentum"
)

// Apps returns the registered applications.
func Apps() []App {
	return []App{AppPrecision, AppMomentum}
}

// ParseApp validates an application name from the wire.
func ParseApp(s string) (App, error) {
	for _, app := range Apps() {
		if App(s) == app {
			return app, nil
		}
	}
	return "", fmt.Errorf("permission: unknown app %q", s)
}

// Role is a member's organization-level role.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleGuest  Role = "guest"
)

// ParseRole validates an organization role from the wire.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOwner, RoleAdmin, RoleMember, RoleGuest:
		return Role(s), nil
	}
	return "", fmt.Errorf("permission: unknown role %q", s)
}

// Label returns the display name for the role.
func (r Role) Label() string {
	switch r {
	case RoleOwner:
		return "Owner"
	case RoleAdmin:
		return "Admin"
	case RoleMember:
		return "Member"
	case RoleGuest:
		return "Guest"
	default:
		return string(r)
	}
}

// CanManageMembers reports whether the role may edit other members'
// app permissions. The permission store itself does not check this;
// callers gate on it before writing.
func (r Role) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}
