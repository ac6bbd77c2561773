package pkg

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var requestValidator = newRequestValidator()

// usernameRegex limits usernames to letters, digits and underscore.
// Usernames appear in @mentions, so the charset must match mentionRegex.
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// channelNameRegex allows unicode letters/digits plus space, dash, underscore.
var channelNameRegex = regexp.MustCompile(`^[\p{L}\p{N} _-]+$`)

func newRequestValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	v.RegisterValidation("channelname", func(fl validator.FieldLevel) bool {
		return channelNameRegex.MatchString(fl.Field().String())
	})
	return v
}

// Normalizer is implemented by request DTOs that need field normalization
// (trimming, prefixing) before struct-tag validation runs.
type Normalizer interface {
	Normalize()
}

// SemanticValidator is implemented by request DTOs with rules a struct tag
// cannot express (cross-field checks, bitmask subsets, duplicate detection).
// It runs after tag validation passes.
type SemanticValidator interface {
	Validate() error
}

// DecodeAndValidate decodes a JSON request body into dst, rejecting unknown
// fields and trailing data, then runs normalization, struct-tag validation
// and any semantic checks the DTO declares. All failures come back as
// ErrInvalidInput so handlers map them to 400 uniformly.
func DecodeAndValidate(body io.Reader, dst any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body", ErrInvalidInput)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: invalid JSON body", ErrInvalidInput)
	}

	return Validate(dst)
}

// Validate runs normalization, struct-tag validation and semantic checks on
// an already-decoded value.
func Validate(dst any) error {
	if n, ok := dst.(Normalizer); ok {
		n.Normalize()
	}

	if err := requestValidator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidInput, friendlyMessage(verrs[0]))
		}
		return fmt.Errorf("%w: invalid request payload", ErrInvalidInput)
	}

	if sv, ok := dst.(SemanticValidator); ok {
		if err := sv.Validate(); err != nil {
			if errors.Is(err, ErrInvalidInput) {
				return err
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
		}
	}

	return nil
}

func friendlyMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "invalid email format"
	case "min", "max", "len":
		return fmt.Sprintf("invalid %s length", field)
	case "alphanum":
		return fmt.Sprintf("%s must be alphanumeric", field)
	case "username":
		return fmt.Sprintf("%s may only contain letters, numbers and underscores", field)
	case "channelname":
		return fmt.Sprintf("%s may only contain letters, numbers, spaces, dashes and underscores", field)
	case "oneof":
		return fmt.Sprintf("invalid %s value", field)
	case "hexcolor":
		return fmt.Sprintf("%s must be a valid hex color code (e.g. #FF5733)", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "gte", "gt":
		return fmt.Sprintf("%s is too small", field)
	case "lte", "lt":
		return fmt.Sprintf("%s is too large", field)
	default:
		return fmt.Sprintf("invalid %s", field)
	}
}
