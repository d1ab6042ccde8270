package middleware

import (
	"reflect"

	"github.com/gin-gonic/gin/binding"

	"github.com/jwalitptl/referral-api/pkg/validator"
)

// ginValidator lets gin's query and form binding report errors the same way as the
// JSON bodies validated by the services.
type ginValidator struct {
	v validator.Validator
}

func (g ginValidator) ValidateStruct(obj interface{}) error {
	val := reflect.ValueOf(obj)
	for val.Kind() == reflect.Ptr && !val.IsNil() {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}
	return g.v.Validate(obj)
}

func (g ginValidator) Engine() interface{} {
	return g.v.Engine()
}

// UseValidator installs v as gin's binding validator.
func UseValidator(v validator.Validator) {
	binding.Validator = ginValidator{v: v}
}
