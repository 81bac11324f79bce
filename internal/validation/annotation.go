package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/gophreview/internal/models"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// typePattern допустимый формат типа аннотации; неизвестные типы разрешены
	typePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
)

// MaxReactionLength максимальная длина реакции в символах
const MaxReactionLength = 32

// ErrNilAnnotation возвращается при проверке nil-записи
var ErrNilAnnotation = errors.New("annotation cannot be nil")

func init() {
	validate = validator.New()
}

// ValidateAnnotation проверяет структуру аннотации: обязательные поля по тегам
// и ограничения конкретного типа.
func ValidateAnnotation(a *models.Annotation) error {
	if a == nil {
		return ErrNilAnnotation
	}

	if err := validate.Struct(a); err != nil {
		return formatValidationError(err)
	}

	if !typePattern.MatchString(string(a.Type)) {
		return fmt.Errorf("Type: %q contains invalid characters", a.Type)
	}

	if a.ParentID != "" && a.ParentID == a.ID {
		return fmt.Errorf("ParentID: annotation cannot be its own parent")
	}

	switch a.Type {
	case models.TypeComment, models.TypeQuestion:
		if strings.TrimSpace(a.Content) == "" {
			return fmt.Errorf("Content: %s requires non-empty content", a.Type)
		}
	case models.TypeSuggestion:
		if a.Suggestion == nil {
			return fmt.Errorf("Suggestion: suggestion requires original and replacement text")
		}
		if a.Suggestion.Original == "" {
			return fmt.Errorf("Suggestion: original text cannot be empty")
		}
		if a.Suggestion.Original == a.Suggestion.Replacement {
			return fmt.Errorf("Suggestion: replacement must differ from original")
		}
	case models.TypeReaction:
		if a.Content == "" {
			return fmt.Errorf("Content: reaction cannot be empty")
		}
		if utf8.RuneCountInString(a.Content) > MaxReactionLength {
			return fmt.Errorf("Content: reaction exceeds %d characters", MaxReactionLength)
		}
	}

	return nil
}

// formatValidationError converts validator errors to user-friendly messages
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s: field is required", e.Field()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s: must be at most %s", e.Field(), e.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s: must be one of [%s]", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s: failed %s validation", e.Field(), e.Tag()))
		}
	}
	return errors.New(strings.Join(messages, "; "))
}
