package server

import (
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("style_name", validateStyleName)
	return v
}

// validateStyleName accepts a bare file name, never a path
func validateStyleName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}
