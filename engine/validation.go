package engine

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"trading-journal/database"
	models "trading-journal/database/models_pkg"
	"trading-journal/notifications"
)

// Validator checks user-supplied configuration and preferences
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a validator with the alert engine's custom tags registered
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterValidation("operator", func(fl validator.FieldLevel) bool {
		return models.Operator(fl.Field().String()).Valid()
	})
	v.RegisterValidation("severity", func(fl validator.FieldLevel) bool {
		return models.Severity(fl.Field().String()).Valid()
	})
	v.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		return models.Channel(fl.Field().String()).Valid()
	})
	v.RegisterValidation("alerttype", func(fl validator.FieldLevel) bool {
		return models.AlertType(fl.Field().String()).Valid()
	})
	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := notifications.ParseClock(fl.Field().String())
		return err == nil
	})

	return &Validator{validator: v}
}

// ValidateConfiguration validates an alert configuration
func (v *Validator) ValidateConfiguration(cfg *models.AlertConfiguration) error {
	if cfg == nil {
		return database.NewValidationError("configuration", "is required")
	}
	if err := v.validator.Struct(cfg); err != nil {
		return toValidationError(err)
	}

	seen := make(map[string]bool)
	for _, d := range cfg.DrawdownLimits {
		if seen[d.ID] {
			return database.NewValidationErrorWithValue("drawdown_limits.id", "duplicate rule id", d.ID)
		}
		seen[d.ID] = true
	}
	for _, m := range cfg.PerformanceMilestones {
		if seen[m.ID] {
			return database.NewValidationErrorWithValue("performance_milestones.id", "duplicate rule id", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// ValidatePreferences validates notification preferences
func (v *Validator) ValidatePreferences(prefs *models.NotificationPreferences) error {
	if prefs == nil {
		return database.NewValidationError("preferences", "is required")
	}
	if err := v.validator.Struct(prefs); err != nil {
		return toValidationError(err)
	}

	q := prefs.QuietHours
	if q.Enabled && (q.Start == "" || q.End == "") {
		return database.NewValidationError("quiet_hours", "start and end are required when enabled")
	}
	return nil
}

// toValidationError reports the first failing field as a database.ValidationError
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return database.NewValidationError("input", err.Error())
	}

	fe := verrs[0]
	return database.NewValidationErrorWithValue(fe.Namespace(), reason(fe), fe.Value())
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "required":
		return "is required"
	case "operator", "severity", "channel", "alerttype":
		return "unknown " + fe.Tag()
	case "clock":
		return "must be a time of day in HH:MM"
	case "timezone":
		return "must be an IANA time zone"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
