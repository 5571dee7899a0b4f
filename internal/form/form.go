// Package form holds the typed inputs accepted by the HTTP layer and the
// pure validation that runs over them.
//
// Validate never touches the database or the filesystem: it takes a struct,
// reads its `validate` tags and returns the failing fields. Checks that need
// storage (is this username taken?) live in the service layer.
package form

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/houseplant-tracker/internal/apperror"
	"github.com/sakif/houseplant-tracker/internal/model"
	"github.com/sakif/houseplant-tracker/internal/storage"
)

// Register is the sign-up form. Password2 must repeat Password.
type Register struct {
	Username  string `json:"username" form:"username" validate:"required,max=64"`
	Email     string `json:"email" form:"email" validate:"required,email,max=254"`
	Password  string `json:"password" form:"password" validate:"required,max=72"`
	Password2 string `json:"password2" form:"password2" validate:"required,eqfield=Password"`
}

// Login is the sign-in form. Next is the page to resume afterwards.
type Login struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
	Next     string `json:"next" form:"next"`
}

// Plant is used for both adding and editing a plant. PhotoName is the
// original filename of an uploaded photo, or "" when none was sent.
type Plant struct {
	Name               string `json:"name" form:"name" validate:"required,max=100"`
	Species            string `json:"species" form:"species" validate:"required,max=100"`
	Location           string `json:"location" form:"location" validate:"required,max=100"`
	WateringFrequency  int    `json:"watering_frequency" form:"watering_frequency" validate:"required,min=1"`
	SunlightPreference string `json:"sunlight_preference" form:"sunlight_preference" validate:"required,sunlight"`
	PhotoName          string `json:"-" form:"photo" validate:"omitempty,image"`
}

// CareEvent is the "log care" form. Notes are optional.
type CareEvent struct {
	EventType string `json:"event_type" form:"event_type" validate:"required,event_type"`
	Notes     string `json:"notes" form:"notes" validate:"max=2000"`
}

// JournalEntry is the "add journal entry" form.
type JournalEntry struct {
	Content   string `json:"content" form:"content" validate:"required,max=10000"`
	PhotoName string `json:"-" form:"photo" validate:"omitempty,image"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance builds the shared validator on first use. Field names in
// errors come from the `form` tag so they match what the client sent.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		mustRegister(v, "sunlight", func(fl validator.FieldLevel) bool {
			return model.SunlightPreference(fl.Field().String()).Valid()
		})
		mustRegister(v, "event_type", func(fl validator.FieldLevel) bool {
			return model.EventType(fl.Field().String()).Valid()
		})
		mustRegister(v, "image", func(fl validator.FieldLevel) bool {
			return storage.AllowedExtension(fl.Field().String())
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("form: registering %q validation: %v", tag, err))
	}
}

// Validate trims the string fields of input (which must be a pointer to one
// of this package's structs) and returns every failing field in declaration
// order. A nil result means the input is valid.
//
// Passwords are not trimmed.
func Validate(input any) []apperror.FieldError {
	normalize(input)

	err := validatorInstance().Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return []apperror.FieldError{{Field: "", Message: err.Error()}}
	}

	fields := make([]apperror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperror.FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return fields
}

// Check is Validate wrapped as an error, for callers that just want to
// return early.
func Check(input any) error {
	if fields := Validate(input); len(fields) > 0 {
		return apperror.InvalidFields(fields)
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// message renders one validator failure in the wording the forms have always
// used.
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "eqfield":
		return "Field must be equal to password."
	case "min":
		return fmt.Sprintf("Number must be at least %s.", fe.Param())
	case "max":
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	case "sunlight", "event_type":
		return "Not a valid choice."
	case "image":
		return "Images only!"
	default:
		return fmt.Sprintf("Failed %s validation.", fe.Tag())
	}
}

// normalize trims surrounding whitespace from every string field except
// passwords and the redirect target.
func normalize(input any) {
	rv := reflect.ValueOf(input)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return
	}
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if f.Kind() != reflect.String || !f.CanSet() {
			continue
		}
		switch rt.Field(i).Name {
		case "Password", "Password2", "Next":
			continue
		}
		f.SetString(strings.TrimSpace(f.String()))
	}
}
