// Package validate wraps a shared validator with english messages, plus the
// uuid helpers used for entity ids.
package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, translator)
}

// Check validates the struct tags of val. The returned error joins the
// translated message of every failing field, ready to show to the caller.
func Check(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	verrors, ok := err.(validator.ValidationErrors)
	if !ok || len(verrors) == 0 {
		return err
	}

	msgs := make([]string, 0, len(verrors))
	for _, ve := range verrors {
		msgs = append(msgs, ve.Translate(translator))
	}

	return errors.New(strings.Join(msgs, "; "))
}

func GenerateID() string {
	return uuid.NewString()
}

func CheckID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("ID is not in its proper form")
	}
	return nil
}
