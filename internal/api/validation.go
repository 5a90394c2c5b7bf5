package api

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"cutx/catalog/internal/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var setupOnce sync.Once

// SetupValidator registers the catalogue enum tags on gin's validator engine.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})

		_ = v.RegisterValidation("product_type", enumValidator(func(s string) bool {
			return domain.ProductType(strings.ToUpper(s)).IsValid()
		}))
		_ = v.RegisterValidation("material", enumValidator(func(s string) bool {
			return domain.Material(strings.ToUpper(s)).IsValid()
		}))
		_ = v.RegisterValidation("decor_category", enumValidator(func(s string) bool {
			return domain.DecorCategory(strings.ToUpper(s)).IsValid()
		}))
		_ = v.RegisterValidation("stock_status", enumValidator(func(s string) bool {
			return domain.StockStatus(strings.ToUpper(s)).IsValid()
		}))
	})
}

func enumValidator(valid func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return false
		}
		return valid(strings.TrimSpace(field.String()))
	}
}

// validationDetails lists the failing fields of a binding error, nil when err is not a validation error.
func validationDetails(err error) []ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	details := make([]ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, ValidationDetail{Field: e.Field(), Message: validationMessage(e)})
	}
	return details
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min", "gte":
		return "Must be at least " + e.Param()
	case "max", "lte":
		return "Must be at most " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "numeric":
		return "Must be numeric"
	case "product_type", "material", "decor_category", "stock_status":
		return "Unknown " + strings.ReplaceAll(e.Tag(), "_", " ")
	default:
		return "Invalid value"
	}
}
