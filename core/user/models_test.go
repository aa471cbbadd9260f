package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-portal/core"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Role
		wantOk bool
	}{
		{name: "admin", input: "admin", want: RoleAdmin, wantOk: true},
		{name: "mixed case and spaces", input: "  Teacher ", want: RoleTeacher, wantOk: true},
		{name: "assistant", input: "assistant", want: RoleAssistant, wantOk: true},
		{name: "student", input: "STUDENT", want: RoleStudent, wantOk: true},
		{name: "unknown", input: "principal", want: Role("principal"), wantOk: false},
		{name: "empty", input: "", want: Role(""), wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRole(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOk, ok)
		})
	}
}

func TestParseRoles(t *testing.T) {
	got := ParseRoles("admin", "janitor", "Teacher")
	assert.Equal(t, []Role{RoleAdmin, RoleTeacher}, got)
	assert.Empty(t, ParseRoles())
}

func TestCurrentUser_HasAnyRole(t *testing.T) {
	teacher := CurrentUser{ID: "u2", Role: RoleTeacher}

	tests := []struct {
		name  string
		roles []Role
		want  bool
	}{
		{name: "member", roles: []Role{RoleAdmin, RoleTeacher}, want: true},
		{name: "not a member", roles: []Role{RoleAdmin}, want: false},
		{name: "no hierarchy", roles: []Role{RoleAssistant}, want: false},
		{name: "no roles", roles: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, teacher.HasAnyRole(tt.roles...))
		})
	}
}

func TestCurrentUser_roleHelpers(t *testing.T) {
	admin := CurrentUser{Role: RoleAdmin}
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.IsTeacherOrAdmin())
	assert.False(t, admin.IsTeacher())

	student := CurrentUser{Role: RoleStudent}
	assert.True(t, student.IsStudent())
	assert.False(t, student.IsTeacherOrAdmin())
	assert.False(t, student.IsAssistant())
}

func TestCurrentUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", CurrentUser{FirstName: "Jane", LastName: "Doe"}.DisplayName())
	assert.Equal(t, "Jane", CurrentUser{FirstName: "Jane"}.FullName())
	assert.Equal(t, "jane@masomo.cd", CurrentUser{Email: "jane@masomo.cd"}.DisplayName())
}

func TestLoginRequest_Validate(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name       string
		req        LoginRequest
		wantFields []string
	}{
		{name: "valid", req: LoginRequest{Email: " Jane@Masomo.cd ", Password: "secret"}},
		{name: "missing email", req: LoginRequest{Password: "secret"}, wantFields: []string{"email"}},
		{name: "bad email", req: LoginRequest{Email: "jane", Password: "secret"}, wantFields: []string{"email"}},
		{name: "blank password", req: LoginRequest{Email: "jane@masomo.cd", Password: "   "}, wantFields: []string{"password"}},
		{name: "empty", req: LoginRequest{}, wantFields: []string{"email", "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(validate)
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				assert.Equal(t, "jane@masomo.cd", tt.req.Email)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			if !assert.True(t, ok, "want validator.ValidationErrors, got %T", err) {
				return
			}
			var fields []string
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestLanguagePreference_Validate(t *testing.T) {
	validate := newValidator()

	for _, lang := range []string{"en", "FR", " ar "} {
		lp := LanguagePreference{Language: lang}
		assert.NoError(t, lp.Validate(validate), lang)
	}
	for _, lang := range []string{"", "sw", "english"} {
		lp := LanguagePreference{Language: lang}
		assert.Error(t, lp.Validate(validate), lang)
	}
}
