package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/certauth/extract"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("file_exists", validateFileExists)
	_ = v.RegisterValidation("extraction_source", validateExtractionSource)
	return v
}

func validateFileExists(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return true
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func validateExtractionSource(fl validator.FieldLevel) bool {
	switch extract.Source(strings.ToLower(fl.Field().String())) {
	case "", extract.SourceNone, extract.SourceHeader, extract.SourceCookie, extract.SourceQuery:
		return true
	default:
		return false
	}
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	msgs := make([]string, 0, len(ves))
	for _, fe := range ves {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fieldPath(fe), message(fe)))
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}

// fieldPath drops the root struct name: Settings.Certificate.Path -> Certificate.Path.
func fieldPath(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when its check is enabled"
	case "file_exists":
		return "file must exist and be a regular file"
	case "extraction_source":
		return "must be one of none, header, cookie, query"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "hostname_port":
		return "must be host:port"
	case "gt", "gte", "lte":
		return fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}
