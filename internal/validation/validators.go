package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/mstanton/daykeeper/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but log if they do
	if err := Validate.RegisterValidation("goal_status", validateGoalStatus); err != nil {
		panic(fmt.Sprintf("failed to register goal_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("time_of_day", validateTimeOfDay); err != nil {
		panic(fmt.Sprintf("failed to register time_of_day validator: %v", err))
	}
}

// validateGoalStatus validates that a string is a valid GoalStatus enum value
func validateGoalStatus(fl validator.FieldLevel) bool {
	switch models.GoalStatus(fl.Field().String()) {
	case models.GoalStatusPending, models.GoalStatusCompleted, models.GoalStatusSkipped:
		return true
	default:
		return false
	}
}

// validateTimeOfDay validates that a string parses as "HH:mm"
func validateTimeOfDay(fl validator.FieldLevel) bool {
	_, err := models.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateGoalStatus validates a GoalStatus string value
func ValidateGoalStatus(value string) error {
	switch models.GoalStatus(value) {
	case models.GoalStatusPending, models.GoalStatusCompleted, models.GoalStatusSkipped:
		return nil
	default:
		return fmt.Errorf("invalid status: %s (must be 'pending', 'completed', or 'skipped')", value)
	}
}
