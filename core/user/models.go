package user

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/core"
)

type Role string

// Roles
const (
	RoleAdmin     Role = "admin"
	RoleTeacher   Role = "teacher"
	RoleAssistant Role = "assistant"
	RoleStudent   Role = "student"
)

// Languages
const (
	LangEnglish = "en"
	LangFrench  = "fr"
	LangArabic  = "ar"

	DefaultLanguage = LangEnglish
)

var (
	AllRoles  = []Role{RoleAdmin, RoleTeacher, RoleAssistant, RoleStudent}
	Languages = []string{LangEnglish, LangFrench, LangArabic}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Assistant", Value: RoleAssistant},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

// IsValid checks if the role is one of the closed set of roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleAssistant, RoleStudent:
		return true
	default:
		return false
	}
}

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, bool) {
	role := Role(core.CleanString(s, true /* lower */))
	return role, role.IsValid()
}

// ParseRoles parses route metadata role names, skipping unknown ones.
func ParseRoles(names ...string) []Role {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		if role, ok := ParseRole(name); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

func IsSupportedLanguage(lang string) bool {
	for _, l := range Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// CurrentUser is the snapshot of the authenticated principal.
// It is replaced as a whole, never updated field by field.
type CurrentUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
	IsActive  bool   `json:"isActive"`
}

func (u CurrentUser) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName falls back to the email when no name is known.
func (u CurrentUser) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Email
}

// HasAnyRole checks role membership. Roles are flat: no role implies another.
func (u CurrentUser) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

func (u CurrentUser) IsAdmin() bool     { return u.Role == RoleAdmin }
func (u CurrentUser) IsTeacher() bool   { return u.Role == RoleTeacher }
func (u CurrentUser) IsAssistant() bool { return u.Role == RoleAssistant }
func (u CurrentUser) IsStudent() bool   { return u.Role == RoleStudent }

// IsTeacherOrAdmin is for actions both roles can perform.
func (u CurrentUser) IsTeacherOrAdmin() bool {
	return u.IsTeacher() || u.IsAdmin()
}

// LoginRequest contains the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,notblank"`
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

// LanguagePreference is the persisted UI language.
type LanguagePreference struct {
	Language string `json:"language" validate:"required,lang"`
}

func (lp *LanguagePreference) Validate(validate *validator.Validate) error {
	lp.Language = core.CleanString(lp.Language, true /* lower */)
	return validate.Struct(lp)
}
