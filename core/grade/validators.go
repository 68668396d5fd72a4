package grade

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/grading"
)

var (
	componentTag  = "component"
	componentText = "assessment component must be one of MAC, PP or PT"

	trimesterTag  = "trimester"
	trimesterText = "trimester must be 1, 2 or 3"
)

// InitValidators registers the grade validation tags and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(componentTag, componentValidation)
	core.RegisterCustomTranslation(validate, translator, componentTag, componentText)

	// min/max on trimesters read better with a dedicated message
	validate.RegisterAlias(trimesterTag, "min=1,max=3")
	core.RegisterCustomTranslation(validate, translator, trimesterTag, trimesterText)
}

// componentValidation checks that the value is one of grading.Components
func componentValidation(fl validator.FieldLevel) bool {
	switch v := fl.Field().Interface().(type) {
	case grading.Component:
		_, err := grading.ParseComponent(string(v))
		return err == nil
	case string:
		_, err := grading.ParseComponent(v)
		return err == nil
	}
	return false
}
