package config

import (
	stderrors "errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/hpungsan/certmail/internal/errors"
)

// Validate checks field ranges and enumerations. Every offending field is
// reported in one INVALID_CONFIG error, named by its JSON key.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonName)

	enLang := en.New()
	trans, _ := ut.New(enLang, enLang).GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return errors.NewInternal(err)
	}

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.NewInternal(err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		msg := fe.Translate(trans)
		fields[key] = msg
		msgs = append(msgs, key+": "+msg)
	}
	sort.Strings(msgs)

	e := errors.NewInvalidConfig("invalid configuration: " + strings.Join(msgs, "; "))
	e.Details = map[string]any{"fields": fields}
	return e
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
