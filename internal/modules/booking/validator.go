// README: Booking request validation (struct tags plus business rules). Pure; never touches the store.
package booking

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"rental/internal/types"
)

// MinDriverAge is the minimum age of the primary driver on the day the request is validated.
const MinDriverAge = 21

type ValidationResult struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return ValidationError{Errors: r.Errors}
}

type Validator struct {
	structs *validator.Validate
	now     func() time.Time
}

func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{structs: v, now: now}
}

// Validate checks req against a vehicle of the given capacity and collects every
// violation. A capacity of zero skips the capacity check.
func (v *Validator) Validate(req CreateRequest, capacity int) ValidationResult {
	var errs []FieldError
	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	if err := v.structs.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			add("request", err.Error())
		}
		for _, fe := range verrs {
			add(fieldPath(fe.Namespace()), tagMessage(fe))
		}
	}

	today := types.DateOf(v.now())

	start, startOK := v.date(req.StartDate, "startDate", add)
	if startOK && start.Before(today) {
		add("startDate", "must not be in the past")
	}
	end, endOK := v.date(req.EndDate, "endDate", add)
	if startOK && endOK && !end.After(start) {
		add("endDate", "must be after startDate")
	}

	if req.GuestCount < 1 {
		add("guestCount", "must be at least 1")
	} else if capacity > 0 && req.GuestCount > capacity {
		add("guestCount", fmt.Sprintf("exceeds vehicle capacity of %d", capacity))
	}

	if dob, ok := v.date(req.Driver.DateOfBirth, "driver.dateOfBirth", add); ok {
		if ageOn(dob, today) < MinDriverAge {
			add("driver.dateOfBirth", fmt.Sprintf("driver must be at least %d years old", MinDriverAge))
		}
	}
	if issued, ok := v.date(req.Driver.LicenseIssueDate, "driver.licenseIssueDate", add); ok && issued.After(today) {
		add("driver.licenseIssueDate", "must not be in the future")
	}
	if expiry, ok := v.date(req.Driver.LicenseExpiryDate, "driver.licenseExpiryDate", add); ok && !expiry.After(today) {
		add("driver.licenseExpiryDate", "driver license has expired")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// date parses a non-empty date field. Empty values are reported by the
// required tags, so they are skipped here.
func (v *Validator) date(value, field string, add func(string, string)) (time.Time, bool) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, false
	}
	t, err := types.ParseDate(strings.TrimSpace(value))
	if err != nil {
		add(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return t, true
}

func ageOn(dob, day time.Time) int {
	years := day.Year() - dob.Year()
	if day.Month() < dob.Month() || (day.Month() == dob.Month() && day.Day() < dob.Day()) {
		years--
	}
	return years
}

// fieldPath drops the root struct name: "CreateRequest.driver.email" -> "driver.email".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when paymentStatus is paid"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
