package shared

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/account"
	"github.com/trezcool/promissory/core/promissory"
)

// Validator bundles the validator with its english Translator.
type Validator struct {
	Validate   *validator.Validate
	Translator ut.Translator
}

// NewValidator instantiates the validator along with its english Translator,
// with the custom validations of every package registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	promissory.InitValidators(validate, translator)
	return validate, translator
}
