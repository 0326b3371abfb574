package lib

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

// Validator validates structs tagged with `validate:"..."`. It satisfies
// gin's binding.StructValidator so request bodies and configuration share
// one rule set.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("validate")
	return &Validator{validate: v}
}

func (v *Validator) Validate(obj any) error {
	return v.validate.Struct(obj)
}

// ValidateStruct validates obj when it is a struct or a pointer to one and
// ignores everything else.
func (v *Validator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}
	return v.validate.Struct(obj)
}

func (v *Validator) Engine() any {
	return v.validate
}
