package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var fundingIDRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-\.]{0,63}$`)

// reservedIDs cannot be provisioned.
var reservedIDs = map[string]bool{"external": true}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("funding_id", validateFundingID)
	}
}

// validateFundingID allows up to 64 alphanumerics, underscores, dashes and
// dots, starting with an alphanumeric.
func validateFundingID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return fundingIDRe.MatchString(id) && !reservedIDs[id]
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			if elem := f.Elem(); elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
