package action

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultValidationMessage is the message of failures raised by ValidateInput.
const DefaultValidationMessage = "The given data was invalid."

// ruleConfirmed requires <field>_confirmation to match <field>.
const ruleConfirmed = "confirmed"

// ruleMaxBytes caps the encoded length of a string, unlike max which counts
// characters.
const ruleMaxBytes = "maxbytes"

// Rules maps a field name to a validator tag expression such as
// "required,email,max=255". The extra rules "confirmed" and "maxbytes" are
// understood as well.
type Rules map[string]string

// Messages overrides failure messages. Keys are "field.rule" or "rule".
type Messages map[string]string

// Validator checks input against rules and returns the whitelisted fields
// plus the messages of every failing field.
type Validator interface {
	Validate(ctx context.Context, input map[string]any, rules Rules, messages Messages) (map[string]any, map[string][]string)
}

var defaultValidator = NewRuleValidator()

// ValidateInput validates input with the default validator.
func ValidateInput(ctx context.Context, input map[string]any, rules Rules, messages Messages) (map[string]any, error) {
	return ValidateWith(ctx, defaultValidator, input, rules, messages)
}

// ValidateWith validates input with v. It returns only the fields named in
// rules, or a *ValidationFailure when any field fails.
func ValidateWith(ctx context.Context, v Validator, input map[string]any, rules Rules, messages Messages) (map[string]any, error) {
	validated, errs := v.Validate(ctx, input, rules, messages)
	if len(errs) > 0 {
		return nil, &ValidationFailure{Errors: errs, Message: DefaultValidationMessage}
	}
	return validated, nil
}

// RuleValidator implements Validator with go-playground/validator. Unknown
// tags panic inside the validator, which the executor reports as a 500.
type RuleValidator struct {
	validate *validator.Validate
}

// NewRuleValidator returns a RuleValidator with the stock tag set plus
// maxbytes.
func NewRuleValidator() *RuleValidator {
	v := validator.New()
	if err := v.RegisterValidation(ruleMaxBytes, maxBytes); err != nil {
		panic(fmt.Sprintf("register %s: %v", ruleMaxBytes, err))
	}
	return &RuleValidator{validate: v}
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		panic(fmt.Sprintf("bad %s parameter %q", ruleMaxBytes, fl.Param()))
	}
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}
	return len(field.String()) <= limit
}

// Engine exposes the underlying validator for registering custom tags.
func (v *RuleValidator) Engine() *validator.Validate {
	return v.validate
}

func (v *RuleValidator) Validate(ctx context.Context, input map[string]any, rules Rules, messages Messages) (map[string]any, map[string][]string) {
	fields := make([]string, 0, len(rules))
	for field := range rules {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	validated := make(map[string]any, len(rules))
	errs := make(map[string][]string)
	for _, field := range fields {
		tags, required, confirmed := splitRule(rules[field])
		value, present := input[field]

		if !present && !required {
			continue
		}

		if tags != "" {
			if err := v.validate.VarCtx(ctx, value, tags); err != nil {
				var fieldErrs validator.ValidationErrors
				if errors.As(err, &fieldErrs) {
					for _, fe := range fieldErrs {
						errs[field] = append(errs[field], message(field, fe.Tag(), fe.Param(), messages))
					}
				} else {
					errs[field] = append(errs[field], err.Error())
				}
				continue
			}
		}

		if confirmed && !reflect.DeepEqual(value, input[field+"_confirmation"]) {
			errs[field] = append(errs[field], message(field, ruleConfirmed, "", messages))
			continue
		}

		if present {
			validated[field] = value
		}
	}
	return validated, errs
}

// splitRule strips "confirmed" from rule and reports whether the plain
// "required" tag is present. Conditional tags such as required_with do not
// count.
func splitRule(rule string) (tags string, required, confirmed bool) {
	parts := strings.Split(rule, ",")
	kept := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "":
		case ruleConfirmed:
			confirmed = true
		case "required":
			required = true
			kept = append(kept, part)
		default:
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ","), required, confirmed
}

var defaultMessages = map[string]string{
	"required":  "The %[1]s field is required.",
	"email":     "The %[1]s field must be a valid email address.",
	"max":       "The %[1]s field must not be greater than %[2]s.",
	"min":       "The %[1]s field must be at least %[2]s.",
	"len":       "The %[1]s field must be %[2]s long.",
	"oneof":     "The selected %[1]s is invalid.",
	"numeric":   "The %[1]s field must be a number.",
	"number":    "The %[1]s field must be a number.",
	"alpha":     "The %[1]s field must only contain letters.",
	"alphanum":  "The %[1]s field must only contain letters and numbers.",
	"url":       "The %[1]s field must be a valid URL.",
	"uuid":      "The %[1]s field must be a valid UUID.",
	"gt":        "The %[1]s field must be greater than %[2]s.",
	"gte":       "The %[1]s field must be greater than or equal to %[2]s.",
	"lt":        "The %[1]s field must be less than %[2]s.",
	"lte":       "The %[1]s field must be less than or equal to %[2]s.",
	"confirmed": "The %[1]s field confirmation does not match.",
	"maxbytes":  "The %[1]s field must not be greater than %[2]s bytes.",
	"boolean":   "The %[1]s field must be true or false.",
}

func message(field, rule, param string, overrides Messages) string {
	if msg, ok := overrides[field+"."+rule]; ok {
		return msg
	}
	if msg, ok := overrides[rule]; ok {
		return msg
	}
	label := strings.ReplaceAll(field, "_", " ")
	if tmpl, ok := defaultMessages[rule]; ok {
		return fmt.Sprintf(tmpl, label, param)
	}
	return fmt.Sprintf("The %s field is invalid.", label)
}
