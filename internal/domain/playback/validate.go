package playback

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// amountTolerance absorbs float noise between a client-side and server-side subtraction.
const amountTolerance = 1e-9

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError names the first offending JSON field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks shape and semantic constraints. It never mutates e.
func Validate(e *Event) error {
	if e == nil {
		return &ValidationError{Field: "event", Reason: "is required"}
	}
	if err := getValidator().Struct(e); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return translate(fieldErrs[0])
		}
		return &ValidationError{Field: "event", Reason: err.Error()}
	}
	for _, key := range []struct{ field, value string }{
		{"id", e.ID},
		{"traineeId", e.TraineeID},
		{"programId", e.ProgramID},
		{"sessionId", e.SessionID},
	} {
		if strings.TrimSpace(key.value) == "" {
			return &ValidationError{Field: key.field, Reason: "is required"}
		}
	}
	switch {
	case e.Kind == KindRewind && e.Rewind == nil:
		return &ValidationError{Field: "rewind", Reason: "is required for rewind events"}
	case e.Kind != KindRewind && e.Rewind != nil:
		return &ValidationError{Field: "rewind", Reason: "is only allowed on rewind events"}
	}
	if r := e.Rewind; r != nil {
		if math.IsNaN(r.FromTime) || math.IsInf(r.FromTime, 0) {
			return &ValidationError{Field: "rewind.fromTime", Reason: "must be finite"}
		}
		if r.Amount != nil {
			want := r.FromTime - r.ToTime
			if *r.Amount <= 0 || math.Abs(*r.Amount-want) > amountTolerance {
				return &ValidationError{
					Field:  "rewind.rewindAmount",
					Reason: fmt.Sprintf("must equal fromTime - toTime (%g)", want),
				}
			}
		}
	}
	if math.IsNaN(e.Timestamp) || math.IsInf(e.Timestamp, 0) {
		return &ValidationError{Field: "timestamp", Reason: "must be finite"}
	}
	return nil
}

func translate(fe validator.FieldError) *ValidationError {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	var reason string
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "oneof":
		reason = "must be one of: " + fe.Param()
	case "gte":
		reason = "must be greater than or equal to " + fe.Param()
	case "ltfield":
		reason = "must be less than fromTime"
	case "max":
		reason = "must be at most " + fe.Param() + " characters"
	default:
		reason = "failed " + fe.Tag() + " validation"
	}
	return &ValidationError{Field: field, Reason: reason}
}
