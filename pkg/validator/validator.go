package validator

import (
	"errors"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate

	notificationTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_.]*$`)
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	var b strings.Builder
	for i, failure := range v {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(failure.Field)
		b.WriteString(" failed on ")
		b.WriteString(failure.Tag)
		if failure.Param != "" {
			b.WriteString("=" + failure.Param)
		}
	}
	return b.String()
}

// ValidateStruct runs the struct tags of s. Field names in the returned
// ValidationErrors follow the json tags.
func ValidateStruct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	failures := make(ValidationErrors, len(fieldErrs))
	for i, fe := range fieldErrs {
		failures[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
	}
	return failures
}

// RegisterValidation adds a custom tag to the shared validator.
func RegisterValidation(tag string, fn validator.Func) error {
	return instance().RegisterValidation(tag, fn)
}

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		for tag, fn := range map[string]validator.Func{
			"notblank":          notBlank,
			"notification_type": notificationType,
			"action_url":        actionURL,
		} {
			if err := validate.RegisterValidation(tag, fn); err != nil {
				panic(err)
			}
		}
	})
	return validate
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(field.String()) != ""
}

// notificationType accepts lower snake case names, optionally dotted
// (order_shipped, order.created).
func notificationType(fl validator.FieldLevel) bool {
	return notificationTypePattern.MatchString(fl.Field().String())
}

// actionURL accepts an app relative path or an absolute http(s) link.
func actionURL(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if strings.HasPrefix(raw, "/") {
		return !strings.HasPrefix(raw, "//")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
