package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators installs the custom request validators on gin's
// default binding engine. Call once at startup before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("commission_rate", validCommissionRate)
}

// validCommissionRate accepts rates from 0 to 10%. Zero is a valid
// commission-free run, which "gte=0,lte=0.1" alone would also allow but
// "required" would reject.
func validCommissionRate(fl validator.FieldLevel) bool {
	rate := fl.Field().Float()
	return rate >= 0 && rate <= 0.1
}
