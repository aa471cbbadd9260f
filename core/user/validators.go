package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	langTag  = "lang"
	langText = "unsupported language"
)

// InitValidators registers the user validators. core.InitValidators must be called first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(langTag, langValidation)
	core.RegisterCustomTranslation(validate, translator, langTag, langText)
}

func roleValidation(fl validator.FieldLevel) bool {
	_, ok := ParseRole(fl.Field().String())
	return ok
}

func langValidation(fl validator.FieldLevel) bool {
	return IsSupportedLanguage(fl.Field().String())
}
