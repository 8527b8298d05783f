package validator

import (
	"errors"
	"reflect"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/stemsi/hoa-backend/internal/model"
)

// trans is the singleton English translator for validation errors.
var trans ut.Translator

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during application startup.
func Setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "" {
				tag = fld.Tag.Get("form")
			}
			name := strings.SplitN(tag, ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		en_translations.RegisterDefaultTranslations(v, trans)

		_ = v.RegisterValidation("question_kind", func(fl govalidator.FieldLevel) bool {
			return model.QuestionKind(fl.Field().String()).Valid()
		})
		v.RegisterStructValidation(validateQuestion, model.QuestionRequest{})

		registerMessage(v, "question_kind", "{0} must be one of single-choice, multi-choice, short-text, numeric, long-text")
		registerMessage(v, "min_options", "{0} needs at least two options")
		registerMessage(v, "in_options", "{0} must be one of the options")
		registerMessage(v, "answer_key", "{0} is required for this kind of question")
	}
}

// validateQuestion enforces the rules that tie a question's kind to its
// options and answer key.
func validateQuestion(sl govalidator.StructLevel) {
	q := sl.Current().Interface().(model.QuestionRequest)

	switch q.Kind {
	case model.QuestionKindSingleChoice:
		if len(q.Options) < 2 {
			sl.ReportError(q.Options, "options", "Options", "min_options", "")
		}
		if !slices.Contains(q.Options, q.CorrectSingle) {
			sl.ReportError(q.CorrectSingle, "correct_single", "CorrectSingle", "in_options", "")
		}

	case model.QuestionKindMultiChoice:
		if len(q.Options) < 2 {
			sl.ReportError(q.Options, "options", "Options", "min_options", "")
		}
		if q.CorrectSet == nil {
			sl.ReportError(q.CorrectSet, "correct_set", "CorrectSet", "answer_key", "")
		}
		for _, c := range q.CorrectSet {
			if !slices.Contains(q.Options, c) {
				sl.ReportError(q.CorrectSet, "correct_set", "CorrectSet", "in_options", "")
				break
			}
		}

	case model.QuestionKindShortText, model.QuestionKindNumeric, model.QuestionKindLongText:
		if strings.TrimSpace(q.CorrectSingle) == "" {
			sl.ReportError(q.CorrectSingle, "correct_single", "CorrectSingle", "answer_key", "")
		}
	}
}

func registerMessage(v *govalidator.Validate, tag, text string) {
	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field())
			return msg
		},
	)
}

// TranslateErrors takes a binding/validation error and returns a map of
// field path to human-readable error message. Nested fields keep their
// position, e.g. "questions[2].options". If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fieldPath(fe)] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

func fieldPath(fe govalidator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// BindQuery is Bind for query string parameters.
func BindQuery(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindQuery(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// Struct validates v outside of a request, e.g. in CLI tools. Setup must
// have been called.
func Struct(v interface{}) map[string]string {
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
