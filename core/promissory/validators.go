package promissory

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/promissory/core"
)

var (
	semTypeTag  = "semtype"
	semTypeText = "{0} must be one of Prelims, Midterms or Finals"

	reviewActionTag  = "reviewaction"
	reviewActionText = "{0} must be approve or reject"
)

// InitValidators registers the request validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(semTypeTag, semTypeValidation)
	core.RegisterCustomTranslation(validate, translator, semTypeTag, semTypeText)

	_ = validate.RegisterValidation(reviewActionTag, reviewActionValidation)
	core.RegisterCustomTranslation(validate, translator, reviewActionTag, reviewActionText)
}

func semTypeValidation(fl validator.FieldLevel) bool {
	_, err := ParseSemesterType(fl.Field().String())
	return err == nil
}

func reviewActionValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "approve", "reject":
		return true
	}
	return false
}
