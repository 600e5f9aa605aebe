package validate

import (
	"reflect"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	TagTelefono = "telefono"
	TagCorreo   = "correo"
)

var (
	telefonoRegex = regexp.MustCompile(`^3\d{9}$`)
	correoRegex   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Get returns the shared validator with the storefront's custom tags and the decimal type
// registered.
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterCustomTypeFunc(DecimalValue, decimal.Decimal{})
		_ = validate.RegisterValidation(TagTelefono, ValidateTelefono)
		_ = validate.RegisterValidation(TagCorreo, ValidateCorreo)
	})
	return validate
}

// ValidateTelefono accepts Colombian mobile numbers: a leading 3 and ten digits in total.
func ValidateTelefono(fl validator.FieldLevel) bool {
	return telefonoRegex.MatchString(fl.Field().String())
}

func ValidateCorreo(fl validator.FieldLevel) bool {
	return correoRegex.MatchString(fl.Field().String())
}

func DecimalValue(v reflect.Value) interface{} {
	d, ok := v.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}
