package dto

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/craftshop/backend/internal/domain/integration"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("platform", validPlatform)
	}
}

// validPlatform accepts only known marketplace platform codes.
func validPlatform(fl validator.FieldLevel) bool {
	return integration.Platform(fl.Field().String()).IsValid()
}
