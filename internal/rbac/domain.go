package rbac

import (
	"strings"
	"time"
)

// Category is the identity space a principal belongs to. A principal has
// exactly one category.
type Category string

const (
	CategoryAdmin Category = "admin"
	CategoryUser  Category = "user"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryAdmin || c == CategoryUser
}

// Principal is an account that can authenticate.
type Principal struct {
	ID       int64
	Email    string
	Category Category
	RoleID   *int64
	IsActive bool
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Role is a named, ordered bundle of permission references. Permissions holds
// the names of the references that still resolve.
type Role struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PermissionIDs []int64   `json:"permissionIds"`
	Permissions   []string  `json:"permissions"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RoleInput carries the writable fields of a role.
type RoleInput struct {
	Name          string
	Description   string
	PermissionIDs []int64
}

// Level is the principal category a route accepts.
type Level int

const (
	// LevelOptional admits anonymous requests.
	LevelOptional Level = iota
	LevelAdmin
	LevelUser
	LevelBoth
)

func (l Level) String() string {
	switch l {
	case LevelOptional:
		return "optional"
	case LevelAdmin:
		return "admin"
	case LevelUser:
		return "user"
	case LevelBoth:
		return "both"
	default:
		return "unknown"
	}
}

// admits reports whether a principal of category c passes the level check.
func (l Level) admits(c Category) bool {
	switch l {
	case LevelAdmin:
		return c == CategoryAdmin
	case LevelUser:
		return c == CategoryUser
	case LevelBoth, LevelOptional:
		return c.Valid()
	default:
		return false
	}
}

// Requirement is the access policy attached to a route.
type Requirement struct {
	Level      Level
	Permission string
}

// RequireAdmin admits admin principals only.
func RequireAdmin() Requirement { return Requirement{Level: LevelAdmin} }

// RequireUser admits user principals only.
func RequireUser() Requirement { return Requirement{Level: LevelUser} }

// RequireBoth admits any authenticated principal.
func RequireBoth() Requirement { return Requirement{Level: LevelBoth} }

// RequireOptional admits anonymous requests and binds the principal when a valid token is sent.
func RequireOptional() Requirement { return Requirement{Level: LevelOptional} }

// RequirePermission admits any authenticated principal holding name.
func RequirePermission(name string) Requirement {
	return RequireBoth().WithPermission(name)
}

// WithPermission adds a permission gate. A permission cannot be checked for
// anonymous requests, so an optional requirement becomes BOTH.
func (r Requirement) WithPermission(name string) Requirement {
	r.Permission = normalizePermission(name)
	if r.Permission != "" && r.Level == LevelOptional {
		r.Level = LevelBoth
	}
	return r
}

func (r Requirement) normalized() Requirement {
	return r.WithPermission(r.Permission)
}

func (r Requirement) String() string {
	if r.Permission == "" {
		return r.Level.String()
	}
	return r.Level.String() + "+" + r.Permission
}

func normalizePermission(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// normalizePermissions lowercases, trims and dedupes names, keeping first-seen order.
func normalizePermissions(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = normalizePermission(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
