package survey

import (
	"time"

	"github.com/lib/pq"
)

// Survey statuses.
const (
	StatusDraft  = "draft"
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Question types.
const (
	TypeMultipleChoice = "multiple_choice"
	TypeFreeText       = "free_text"
	TypeLinearScale    = "linear_scale"
)

// Response statuses.
const (
	ResponseInProgress = "in_progress"
	ResponseSubmitted  = "submitted"
)

type Survey struct {
	ID      string `gorm:"primaryKey" json:"id"`
	Title   string `json:"title"`
	OwnerID string `gorm:"column:user_id;index" json:"user_id"`
	Status  string `gorm:"default:'draft'" json:"status"`

	// ActiveCategory points at the category respondents may currently
	// answer. Nil means no category has been opened yet. It must always
	// reference a category belonging to this survey.
	ActiveCategory *string    `gorm:"column:active_category" json:"active_category"`
	CreatedAt      time.Time  `json:"created_at"`
	Categories     []Category `gorm:"foreignKey:SurveyID" json:"categories"`
}

type Category struct {
	ID          string `gorm:"primaryKey" json:"id"`
	SurveyID    string `gorm:"index" json:"survey_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Order is dense and zero-based within a survey; SaveSurvey reassigns
	// it from array position on every save.
	Order     int        `gorm:"column:display_order" json:"order"`
	Questions []Question `gorm:"foreignKey:CategoryID" json:"questions"`
}

type Question struct {
	ID         string `gorm:"primaryKey" json:"id"`
	CategoryID string `gorm:"index" json:"category_id"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle,omitempty"`
	Type       string `json:"type"`

	// Options is only meaningful for multiple_choice; the scale fields only
	// for linear_scale. Irrelevant fields are persisted as null and ignored.
	Options         pq.StringArray `gorm:"type:text[]" json:"options,omitempty"`
	ScaleStart      *int           `json:"scale_start,omitempty"`
	ScaleEnd        *int           `json:"scale_end,omitempty"`
	ScaleLeftLabel  *string        `json:"scale_left_label,omitempty"`
	ScaleRightLabel *string        `json:"scale_right_label,omitempty"`
	Order           int            `gorm:"column:display_order" json:"order"`
}

// SurveyResponse is the authoritative record of one taker's answer to one
// question. The composite key makes every save an upsert: autosave and
// edit-before-submit are both last-write-wins on this key.
type SurveyResponse struct {
	SurveyID    string    `gorm:"primaryKey" json:"survey_id"`
	QuestionID  string    `gorm:"primaryKey" json:"question_id"`
	TakerID     string    `gorm:"primaryKey" json:"taker_id"`
	AnswerValue string    `json:"answer_value"`
	Status      string    `gorm:"default:'in_progress'" json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategorySubmission is an append-only receipt. Its existence freezes the
// taker's answers for that category.
type CategorySubmission struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	SurveyID    string    `gorm:"uniqueIndex:idx_submission_key" json:"survey_id"`
	CategoryID  string    `gorm:"uniqueIndex:idx_submission_key" json:"category_id"`
	TakerID     string    `gorm:"uniqueIndex:idx_submission_key" json:"taker_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (Survey) TableName() string             { return "surveys.surveys" }
func (Category) TableName() string           { return "surveys.categories" }
func (Question) TableName() string           { return "surveys.questions" }
func (SurveyResponse) TableName() string     { return "surveys.survey_responses" }
func (CategorySubmission) TableName() string { return "surveys.category_submissions" }
