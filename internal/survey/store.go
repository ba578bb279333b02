package survey

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Stream names published to the Notifier on state changes. The live package
// subscribes on the same names.
const (
	StreamCategory  = "category"
	StreamStatus    = "status"
	StreamResponses = "responses"
)

// Notifier receives change events after successful writes. The fan-out
// broker implements it; a nil Notifier disables publication.
type Notifier interface {
	Publish(stream, surveyID string, payload any)
}

// AnswerInput mirrors the client answer shape.
type AnswerInput struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

// ResponseRow is the projection streamed to the live statistics view.
type ResponseRow struct {
	QuestionID  string `json:"question_id"`
	AnswerValue string `json:"answer_value"`
	TakerID     string `json:"taker_id"`
}

// Store is the persistence surface the HTTP layer depends on. GormStore is
// the production implementation; tests use an in-memory stub.
type Store interface {
	CreateSurvey(ownerID, title string, categories []CategoryPatch) (*Survey, error)
	ListSurveys(ownerID string) ([]Survey, error)
	GetSurvey(id string) (*Survey, error)
	SaveSurvey(surveyID, ownerID string, patch SurveyPatch) error
	DeleteSurvey(surveyID, ownerID string) error
	DeleteCategory(surveyID, categoryID, ownerID string) error
	DeleteQuestion(surveyID, questionID, ownerID string) error
	SetStatus(surveyID, ownerID, status string) error
	SetActiveCategory(surveyID, categoryID, ownerID string) error
	ActiveCategory(surveyID string) (string, error)
	Status(surveyID string) (string, error)
	OwnerOf(surveyID string) (string, error)
	SaveAnswer(surveyID, takerID string, in AnswerInput) error
	SubmitCategory(surveyID, takerID, categoryID string, answers []AnswerInput) error
	HasSubmission(surveyID, categoryID, takerID string) (bool, error)
	ListResponses(surveyID string) ([]ResponseRow, error)
}

type GormStore struct {
	db     *gorm.DB
	notify Notifier
}

func NewGormStore(db *gorm.DB, notify Notifier) *GormStore {
	return &GormStore{db: db, notify: notify}
}

func (s *GormStore) publish(stream, surveyID string, payload any) {
	if s.notify != nil {
		s.notify.Publish(stream, surveyID, payload)
	}
}

// ownedSurvey loads a survey and checks the caller owns it.
func ownedSurvey(tx *gorm.DB, surveyID, ownerID string) (*Survey, error) {
	var sv Survey
	if err := tx.First(&sv, "id = ?", surveyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sv.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return &sv, nil
}

func (s *GormStore) CreateSurvey(ownerID, title string, categories []CategoryPatch) (*Survey, error) {
	sv := Survey{
		ID:        uuid.NewString(),
		Title:     title,
		OwnerID:   ownerID,
		Status:    StatusDraft,
		CreatedAt: time.Now(),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&sv).Error; err != nil {
			return err
		}
		for i, cat := range categories {
			category := Category{
				ID:          uuid.NewString(),
				SurveyID:    sv.ID,
				Title:       cat.Title,
				Description: cat.Description,
				Order:       i,
			}
			if err := tx.Create(&category).Error; err != nil {
				return err
			}
			for j, q := range cat.Questions {
				question := questionFromPatch(q, category.ID, j)
				if err := tx.Create(&question).Error; err != nil {
					return err
				}
				category.Questions = append(category.Questions, question)
			}
			sv.Categories = append(sv.Categories, category)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create survey: %w", err)
	}
	return &sv, nil
}

func (s *GormStore) ListSurveys(ownerID string) ([]Survey, error) {
	var surveys []Survey
	err := s.db.Order("created_at DESC").Find(&surveys, "user_id = ?", ownerID).Error
	if err != nil {
		return nil, err
	}
	return surveys, nil
}

func (s *GormStore) GetSurvey(id string) (*Survey, error) {
	var sv Survey
	err := s.db.
		Preload("Categories", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Preload("Categories.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		First(&sv, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sv, nil
}

// SaveSurvey upserts title/status plus every category and question in the
// patch. Order is reassigned from array position so sibling order stays
// dense and zero-based no matter how the client rearranged things.
func (s *GormStore) SaveSurvey(surveyID, ownerID string, patch SurveyPatch) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sv, err := ownedSurvey(tx, surveyID, ownerID)
		if err != nil {
			return err
		}

		updates := map[string]any{"title": patch.Title}
		if patch.Status != "" {
			updates["status"] = patch.Status
		}
		if err := tx.Model(sv).Updates(updates).Error; err != nil {
			return err
		}

		for i, cat := range patch.Categories {
			categoryID := cat.ID
			if categoryID == "" {
				categoryID = uuid.NewString()
			}
			category := Category{
				ID:          categoryID,
				SurveyID:    surveyID,
				Title:       cat.Title,
				Description: cat.Description,
				Order:       i,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "description", "display_order"}),
			}).Create(&category).Error; err != nil {
				return err
			}

			for j, q := range cat.Questions {
				question := questionFromPatch(q, categoryID, j)
				if err := tx.Clauses(clause.OnConflict{
					Columns: []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"title", "subtitle", "type", "options",
						"scale_start", "scale_end", "scale_left_label", "scale_right_label",
						"display_order",
					}),
				}).Create(&question).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if patch.Status != "" {
		s.publish(StreamStatus, surveyID, patch.Status)
	}
	return nil
}

// questionFromPatch builds a Question row, nulling out the fields that are
// irrelevant to the question's type so an invalid shape never reaches
// storage.
func questionFromPatch(q QuestionPatch, categoryID string, order int) Question {
	question := Question{
		ID:         q.ID,
		CategoryID: categoryID,
		Title:      q.Title,
		Subtitle:   q.Subtitle,
		Type:       q.Type,
		Order:      order,
	}
	if question.ID == "" {
		question.ID = uuid.NewString()
	}
	switch q.Type {
	case TypeMultipleChoice:
		question.Options = pq.StringArray(q.Options)
	case TypeLinearScale:
		question.ScaleStart = q.ScaleStart
		question.ScaleEnd = q.ScaleEnd
		question.ScaleLeftLabel = q.ScaleLeftLabel
		question.ScaleRightLabel = q.ScaleRightLabel
	}
	return question
}

// DeleteSurvey runs the cascade as a fixed-order saga. Auxiliary cleanup
// (responses, submissions) is best-effort: a failure there is logged and
// skipped so a partially-evolved schema cannot block deletion. Clearing
// active_category, deleting questions/categories and the survey row itself
// must succeed.
func (s *GormStore) DeleteSurvey(surveyID, ownerID string) error {
	if _, err := ownedSurvey(s.db, surveyID, ownerID); err != nil {
		return err
	}

	// Step 1: break the self-referential constraint.
	if err := s.db.Model(&Survey{}).Where("id = ?", surveyID).
		Update("active_category", nil).Error; err != nil {
		return fmt.Errorf("clear active_category: %w", err)
	}

	// Step 2: responses for the whole survey (best-effort).
	if err := s.db.Where("survey_id = ?", surveyID).
		Delete(&SurveyResponse{}).Error; err != nil {
		log.Printf("[survey] delete responses for %s: %v", surveyID, err)
	}

	// Step 3: submission receipts (best-effort).
	if err := s.db.Where("survey_id = ?", surveyID).
		Delete(&CategorySubmission{}).Error; err != nil {
		log.Printf("[survey] delete submissions for %s: %v", surveyID, err)
	}

	var categoryIDs []string
	if err := s.db.Model(&Category{}).Where("survey_id = ?", surveyID).
		Pluck("id", &categoryIDs).Error; err != nil {
		return fmt.Errorf("fetch categories: %w", err)
	}

	// Step 4: per-category question cleanup. Question deletion must succeed.
	for _, categoryID := range categoryIDs {
		var questionIDs []string
		if err := s.db.Model(&Question{}).Where("category_id = ?", categoryID).
			Pluck("id", &questionIDs).Error; err != nil {
			return fmt.Errorf("fetch questions for category %s: %w", categoryID, err)
		}

		if len(questionIDs) > 0 {
			if err := s.db.Where("question_id IN ?", questionIDs).
				Delete(&SurveyResponse{}).Error; err != nil {
				log.Printf("[survey] delete question responses for %s: %v", categoryID, err)
			}
		}

		if err := s.db.Where("category_id = ?", categoryID).
			Delete(&Question{}).Error; err != nil {
			return fmt.Errorf("delete questions for category %s: %w", categoryID, err)
		}
	}

	// Step 5: categories, then the survey row. Both must succeed.
	if err := s.db.Where("survey_id = ?", surveyID).
		Delete(&Category{}).Error; err != nil {
		return fmt.Errorf("delete categories: %w", err)
	}
	if err := s.db.Delete(&Survey{}, "id = ?", surveyID).Error; err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	return nil
}

// DeleteCategory removes one category and its questions. If the category is
// currently active the pointer is cleared first, so the Survey invariant
// holds even if a later step fails.
func (s *GormStore) DeleteCategory(surveyID, categoryID, ownerID string) error {
	sv, err := ownedSurvey(s.db, surveyID, ownerID)
	if err != nil {
		return err
	}

	var category Category
	if err := s.db.First(&category, "id = ? AND survey_id = ?", categoryID, surveyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	cleared := false
	if sv.ActiveCategory != nil && *sv.ActiveCategory == categoryID {
		if err := s.db.Model(&Survey{}).Where("id = ?", surveyID).
			Update("active_category", nil).Error; err != nil {
			return fmt.Errorf("clear active_category: %w", err)
		}
		cleared = true
	}

	var questionIDs []string
	if err := s.db.Model(&Question{}).Where("category_id = ?", categoryID).
		Pluck("id", &questionIDs).Error; err != nil {
		return fmt.Errorf("fetch questions: %w", err)
	}
	if len(questionIDs) > 0 {
		if err := s.db.Where("question_id IN ?", questionIDs).
			Delete(&SurveyResponse{}).Error; err != nil {
			log.Printf("[survey] delete responses for category %s: %v", categoryID, err)
		}
	}
	if err := s.db.Where("survey_id = ? AND category_id = ?", surveyID, categoryID).
		Delete(&CategorySubmission{}).Error; err != nil {
		log.Printf("[survey] delete submissions for category %s: %v", categoryID, err)
	}

	if err := s.db.Where("category_id = ?", categoryID).Delete(&Question{}).Error; err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	if err := s.db.Delete(&Category{}, "id = ?", categoryID).Error; err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	if err := s.compactCategoryOrder(surveyID); err != nil {
		return err
	}

	if cleared {
		s.publish(StreamCategory, surveyID, "")
	}
	return nil
}

func (s *GormStore) DeleteQuestion(surveyID, questionID, ownerID string) error {
	if _, err := ownedSurvey(s.db, surveyID, ownerID); err != nil {
		return err
	}

	var question Question
	if err := s.db.First(&question, "id = ?", questionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	var category Category
	if err := s.db.First(&category, "id = ?", question.CategoryID).Error; err != nil {
		return fmt.Errorf("fetch parent category: %w", err)
	}
	if category.SurveyID != surveyID {
		return ErrWrongSurvey
	}

	if err := s.db.Where("question_id = ?", questionID).
		Delete(&SurveyResponse{}).Error; err != nil {
		log.Printf("[survey] delete responses for question %s: %v", questionID, err)
	}

	if err := s.db.Delete(&Question{}, "id = ?", questionID).Error; err != nil {
		return fmt.Errorf("delete question: %w", err)
	}

	return s.compactQuestionOrder(question.CategoryID)
}

// compactCategoryOrder reassigns display_order densely after a removal.
func (s *GormStore) compactCategoryOrder(surveyID string) error {
	var categories []Category
	if err := s.db.Order("display_order ASC").
		Find(&categories, "survey_id = ?", surveyID).Error; err != nil {
		return err
	}
	for i, cat := range categories {
		if cat.Order == i {
			continue
		}
		if err := s.db.Model(&Category{}).Where("id = ?", cat.ID).
			Update("display_order", i).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) compactQuestionOrder(categoryID string) error {
	var questions []Question
	if err := s.db.Order("display_order ASC").
		Find(&questions, "category_id = ?", categoryID).Error; err != nil {
		return err
	}
	for i, q := range questions {
		if q.Order == i {
			continue
		}
		if err := s.db.Model(&Question{}).Where("id = ?", q.ID).
			Update("display_order", i).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) SetStatus(surveyID, ownerID, status string) error {
	if status != StatusDraft && status != StatusOpen && status != StatusClosed {
		return fmt.Errorf("invalid status %q", status)
	}
	if _, err := ownedSurvey(s.db, surveyID, ownerID); err != nil {
		return err
	}
	if err := s.db.Model(&Survey{}).Where("id = ?", surveyID).
		Update("status", status).Error; err != nil {
		return err
	}
	s.publish(StreamStatus, surveyID, status)
	return nil
}

// SetActiveCategory moves the answerable-category pointer. Only the owner
// may move it, and the target must belong to the survey. An empty
// categoryID clears the pointer.
func (s *GormStore) SetActiveCategory(surveyID, categoryID, ownerID string) error {
	if _, err := ownedSurvey(s.db, surveyID, ownerID); err != nil {
		return err
	}

	var value any
	if categoryID != "" {
		var category Category
		err := s.db.First(&category, "id = ? AND survey_id = ?", categoryID, surveyID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWrongSurvey
			}
			return err
		}
		value = categoryID
	}

	if err := s.db.Model(&Survey{}).Where("id = ?", surveyID).
		Update("active_category", value).Error; err != nil {
		return err
	}
	s.publish(StreamCategory, surveyID, categoryID)
	return nil
}

func (s *GormStore) ActiveCategory(surveyID string) (string, error) {
	var sv Survey
	if err := s.db.Select("active_category").First(&sv, "id = ?", surveyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if sv.ActiveCategory == nil {
		return "", nil
	}
	return *sv.ActiveCategory, nil
}

func (s *GormStore) Status(surveyID string) (string, error) {
	var sv Survey
	if err := s.db.Select("status").First(&sv, "id = ?", surveyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return sv.Status, nil
}

func (s *GormStore) OwnerOf(surveyID string) (string, error) {
	var sv Survey
	if err := s.db.Select("user_id").First(&sv, "id = ?", surveyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return sv.OwnerID, nil
}

// SaveAnswer upserts one answer keyed by (survey, question, taker).
// Repeating the same call lands in the same end state; an empty value is a
// valid write meaning the answer was retracted. Writes into a category the
// taker already submitted are refused.
func (s *GormStore) SaveAnswer(surveyID, takerID string, in AnswerInput) error {
	var question Question
	if err := s.db.First(&question, "id = ?", in.QuestionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	var category Category
	if err := s.db.First(&category, "id = ?", question.CategoryID).Error; err != nil {
		return fmt.Errorf("fetch parent category: %w", err)
	}
	if category.SurveyID != surveyID {
		return ErrWrongSurvey
	}

	frozen, err := s.HasSubmission(surveyID, question.CategoryID, takerID)
	if err != nil {
		return err
	}
	if frozen {
		return ErrCategorySubmitted
	}

	response := SurveyResponse{
		SurveyID:    surveyID,
		QuestionID:  in.QuestionID,
		TakerID:     takerID,
		AnswerValue: in.Value,
		Status:      ResponseInProgress,
		UpdatedAt:   time.Now(),
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "survey_id"}, {Name: "question_id"}, {Name: "taker_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"answer_value", "status", "updated_at"}),
	}).Create(&response).Error; err != nil {
		return fmt.Errorf("upsert response: %w", err)
	}

	s.publish(StreamResponses, surveyID, nil)
	return nil
}

// SubmitCategory marks the batch submitted and writes the receipt, all in
// one transaction with the receipt last: if any answer upsert fails no
// receipt exists and the category stays answerable. The active category is
// re-read inside the transaction so a submit racing an admin advance is
// refused rather than recorded against a stale pointer.
func (s *GormStore) SubmitCategory(surveyID, takerID, categoryID string, answers []AnswerInput) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var sv Survey
		if err := tx.First(&sv, "id = ?", surveyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if sv.ActiveCategory == nil || *sv.ActiveCategory != categoryID {
			return ErrCategoryNotActive
		}

		var count int64
		if err := tx.Model(&CategorySubmission{}).
			Where("survey_id = ? AND category_id = ? AND taker_id = ?", surveyID, categoryID, takerID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrCategorySubmitted
		}

		for _, answer := range answers {
			response := SurveyResponse{
				SurveyID:    surveyID,
				QuestionID:  answer.QuestionID,
				TakerID:     takerID,
				AnswerValue: answer.Value,
				Status:      ResponseSubmitted,
				UpdatedAt:   time.Now(),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "survey_id"}, {Name: "question_id"}, {Name: "taker_id"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"answer_value", "status", "updated_at"}),
			}).Create(&response).Error; err != nil {
				return fmt.Errorf("upsert submitted answer: %w", err)
			}
		}

		// Receipt last: its existence is what freezes the category.
		receipt := CategorySubmission{
			ID:          uuid.NewString(),
			SurveyID:    surveyID,
			CategoryID:  categoryID,
			TakerID:     takerID,
			SubmittedAt: time.Now(),
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return fmt.Errorf("insert submission receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(StreamResponses, surveyID, nil)
	return nil
}

func (s *GormStore) HasSubmission(surveyID, categoryID, takerID string) (bool, error) {
	var count int64
	err := s.db.Model(&CategorySubmission{}).
		Where("survey_id = ? AND category_id = ? AND taker_id = ?", surveyID, categoryID, takerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) ListResponses(surveyID string) ([]ResponseRow, error) {
	var rows []ResponseRow
	err := s.db.Model(&SurveyResponse{}).
		Select("question_id, answer_value, taker_id").
		Where("survey_id = ?", surveyID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
