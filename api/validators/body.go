package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/bakeshop-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
)

var validate = newValidator()

// quantityFields are the JSON names whose failures are pricing answers rather
// than malformed requests.
var quantityFields = map[string]bool{
	"quantity":      true,
	"unit_quantity": true,
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeJSONBody decodes a single JSON object into dest and validates it.
// Unknown fields are rejected. When only quantity fields fail the error is
// INVALID_QUANTITY so the storefront shows it beside the quantity selector.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}

	details := map[string]string{}
	var quantityMsgs []string
	for _, fe := range errs {
		details[fe.Field()] = validationMessage(fe)
		if quantityFields[fe.Field()] {
			quantityMsgs = append(quantityMsgs, quantityMessage(fe))
		}
	}
	if len(quantityMsgs) == len(errs) {
		sort.Strings(quantityMsgs)
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, quantityMsgs[0]).WithDetails(details)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	}
	return "is invalid"
}

// quantityMessage phrases the failure the way the resolver does, so the same
// wording reaches the customer whichever layer caught it.
func quantityMessage(fe validator.FieldError) string {
	switch {
	case fe.Tag() == "required":
		return fe.Field() + " must not be zero"
	case (fe.Tag() == "min" || fe.Tag() == "gte") && fe.Param() == "1",
		fe.Tag() == "gt" && fe.Param() == "0":
		return pricing.MsgQuantityNotPositive
	}
	return fe.Field() + " " + validationMessage(fe)
}
