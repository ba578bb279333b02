package survey

import (
	"github.com/go-playground/validator/v10"
)

// SurveyPatch is the save payload: title/status plus the full category and
// question lists in display order.
type SurveyPatch struct {
	Title      string          `json:"title" validate:"required"`
	Status     string          `json:"status" validate:"omitempty,oneof=draft open closed"`
	Categories []CategoryPatch `json:"categories" validate:"dive"`
}

type CategoryPatch struct {
	ID          string          `json:"id" validate:"omitempty,uuid4"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Questions   []QuestionPatch `json:"questions" validate:"dive"`
}

type QuestionPatch struct {
	ID              string   `json:"id" validate:"omitempty,uuid4"`
	Title           string   `json:"title" validate:"required"`
	Subtitle        string   `json:"subtitle"`
	Type            string   `json:"type" validate:"required,oneof=multiple_choice free_text linear_scale"`
	Options         []string `json:"options" validate:"required_if=Type multiple_choice,omitempty,min=1,dive,required"`
	ScaleStart      *int     `json:"scale_start" validate:"required_if=Type linear_scale"`
	ScaleEnd        *int     `json:"scale_end" validate:"required_if=Type linear_scale"`
	ScaleLeftLabel  *string  `json:"scale_left_label"`
	ScaleRightLabel *string  `json:"scale_right_label"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(questionScaleBounds, QuestionPatch{})
	return v
}

// questionScaleBounds enforces scale_start < scale_end for linear scales;
// the tag rules cannot compare two fields against each other.
func questionScaleBounds(sl validator.StructLevel) {
	q := sl.Current().Interface().(QuestionPatch)
	if q.Type != TypeLinearScale {
		return
	}
	if q.ScaleStart != nil && q.ScaleEnd != nil && *q.ScaleStart >= *q.ScaleEnd {
		sl.ReportError(q.ScaleEnd, "scale_end", "ScaleEnd", "gtfield", "scale_start")
	}
}

// ValidatePatch checks a save payload, including the per-type question
// rules. Returns the validator's error describing the first offending field.
func ValidatePatch(patch SurveyPatch) error {
	return validate.Struct(patch)
}
