package survey

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore implements Store in memory with the same observable semantics as
// GormStore, so handler and scenario tests run without a database.
type memStore struct {
	mu          sync.Mutex
	surveys     map[string]*Survey
	responses   map[string]*SurveyResponse   // key: survey|question|taker
	submissions map[string]*CategorySubmission // key: survey|category|taker
	notify      Notifier
}

func newMemStore(notify Notifier) *memStore {
	return &memStore{
		surveys:     map[string]*Survey{},
		responses:   map[string]*SurveyResponse{},
		submissions: map[string]*CategorySubmission{},
		notify:      notify,
	}
}

func respKey(surveyID, questionID, takerID string) string {
	return surveyID + "|" + questionID + "|" + takerID
}

func subKey(surveyID, categoryID, takerID string) string {
	return surveyID + "|" + categoryID + "|" + takerID
}

func (m *memStore) publish(stream, surveyID string, payload any) {
	if m.notify != nil {
		m.notify.Publish(stream, surveyID, payload)
	}
}

func (m *memStore) owned(surveyID, ownerID string) (*Survey, error) {
	sv, ok := m.surveys[surveyID]
	if !ok {
		return nil, ErrNotFound
	}
	if sv.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return sv, nil
}

func (m *memStore) CreateSurvey(ownerID, title string, categories []CategoryPatch) (*Survey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv := &Survey{
		ID:        uuid.NewString(),
		Title:     title,
		OwnerID:   ownerID,
		Status:    StatusDraft,
		CreatedAt: time.Now(),
	}
	for i, cat := range categories {
		category := Category{
			ID:          uuid.NewString(),
			SurveyID:    sv.ID,
			Title:       cat.Title,
			Description: cat.Description,
			Order:       i,
		}
		for j, q := range cat.Questions {
			category.Questions = append(category.Questions, questionFromPatch(q, category.ID, j))
		}
		sv.Categories = append(sv.Categories, category)
	}
	m.surveys[sv.ID] = sv
	copied := *sv
	return &copied, nil
}

func (m *memStore) ListSurveys(ownerID string) ([]Survey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Survey
	for _, sv := range m.surveys {
		if sv.OwnerID == ownerID {
			out = append(out, *sv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) GetSurvey(id string) (*Survey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv, ok := m.surveys[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *sv
	return &copied, nil
}

func (m *memStore) SaveSurvey(surveyID, ownerID string, patch SurveyPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv, err := m.owned(surveyID, ownerID)
	if err != nil {
		return err
	}
	sv.Title = patch.Title
	if patch.Status != "" {
		sv.Status = patch.Status
	}

	var categories []Category
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
		for j, q := range cat.Questions {
			category.Questions = append(category.Questions, questionFromPatch(q, categoryID, j))
		}
		categories = append(categories, category)
	}
	sv.Categories = categories

	if patch.Status != "" {
		m.publish(StreamStatus, surveyID, patch.Status)
	}
	return nil
}

func (m *memStore) DeleteSurvey(surveyID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.owned(surveyID, ownerID); err != nil {
		return err
	}
	delete(m.surveys, surveyID)
	for key := range m.responses {
		if keyPrefixed(key, surveyID) {
			delete(m.responses, key)
		}
	}
	for key := range m.submissions {
		if keyPrefixed(key, surveyID) {
			delete(m.submissions, key)
		}
	}
	return nil
}

func keyPrefixed(key, surveyID string) bool {
	return len(key) > len(surveyID) && key[:len(surveyID)+1] == surveyID+"|"
}

func (m *memStore) DeleteCategory(surveyID, categoryID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv, err := m.owned(surveyID, ownerID)
	if err != nil {
		return err
	}

	idx := -1
	for i, cat := range sv.Categories {
		if cat.ID == categoryID {
			idx = i
		}
	}
	if idx == -1 {
		return ErrNotFound
	}

	cleared := false
	if sv.ActiveCategory != nil && *sv.ActiveCategory == categoryID {
		sv.ActiveCategory = nil
		cleared = true
	}

	for _, q := range sv.Categories[idx].Questions {
		for _, taker := range m.takersFor(surveyID, q.ID) {
			delete(m.responses, respKey(surveyID, q.ID, taker))
		}
	}
	for key, sub := range m.submissions {
		if sub.SurveyID == surveyID && sub.CategoryID == categoryID {
			delete(m.submissions, key)
		}
	}

	sv.Categories = append(sv.Categories[:idx], sv.Categories[idx+1:]...)
	for i := range sv.Categories {
		sv.Categories[i].Order = i
	}

	if cleared {
		m.publish(StreamCategory, surveyID, "")
	}
	return nil
}

func (m *memStore) takersFor(surveyID, questionID string) []string {
	var takers []string
	for _, resp := range m.responses {
		if resp.SurveyID == surveyID && resp.QuestionID == questionID {
			takers = append(takers, resp.TakerID)
		}
	}
	return takers
}

func (m *memStore) DeleteQuestion(surveyID, questionID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv, err := m.owned(surveyID, ownerID)
	if err != nil {
		return err
	}

	for ci := range sv.Categories {
		cat := &sv.Categories[ci]
		for qi, q := range cat.Questions {
			if q.ID == questionID {
				cat.Questions = append(cat.Questions[:qi], cat.Questions[qi+1:]...)
				for i := range cat.Questions {
					cat.Questions[i].Order = i
				}
				for _, taker := range m.takersFor(surveyID, questionID) {
					delete(m.responses, respKey(surveyID, questionID, taker))
				}
				return nil
			}
		}
	}
	return ErrNotFound
}

func (m *memStore) SetStatus(surveyID, ownerID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if status != StatusDraft && status != StatusOpen && status != StatusClosed {
		return fmt.Errorf("invalid status %q", status)
	}
	sv, err := m.owned(surveyID, ownerID)
	if err != nil {
		return err
	}
	sv.Status = status
	m.publish(StreamStatus, surveyID, status)
	return nil
}

func (m *memStore) SetActiveCategory(surveyID, categoryID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv, err := m.owned(surveyID, ownerID)
	if err != nil {
		return err
	}

	if categoryID == "" {
		sv.ActiveCategory = nil
	} else {
		found := false
		for _, cat := range sv.Categories {
			if cat.ID == categoryID {
				found = true
			}
		}
		if !found {
			return ErrWrongSurvey
		}
		sv.ActiveCategory = &categoryID
	}

	m.publish(StreamCategory, surveyID, categoryID)
	return nil
}

func (m *memStore) ActiveCategory(surveyID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv, ok := m.surveys[surveyID]
	if !ok {
		return "", ErrNotFound
	}
	if sv.ActiveCategory == nil {
		return "", nil
	}
	return *sv.ActiveCategory, nil
}

func (m *memStore) Status(surveyID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv, ok := m.surveys[surveyID]
	if !ok {
		return "", ErrNotFound
	}
	return sv.Status, nil
}

func (m *memStore) OwnerOf(surveyID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv, ok := m.surveys[surveyID]
	if !ok {
		return "", ErrNotFound
	}
	return sv.OwnerID, nil
}

func (m *memStore) findQuestion(surveyID, questionID string) (*Question, string, error) {
	sv, ok := m.surveys[surveyID]
	if !ok {
		return nil, "", ErrNotFound
	}
	for _, cat := range sv.Categories {
		for _, q := range cat.Questions {
			if q.ID == questionID {
				copied := q
				return &copied, cat.ID, nil
			}
		}
	}
	// The question may exist under another survey, which is a different
	// failure class than a missing question.
	for _, other := range m.surveys {
		for _, cat := range other.Categories {
			for _, q := range cat.Questions {
				if q.ID == questionID {
					return nil, "", ErrWrongSurvey
				}
			}
		}
	}
	return nil, "", ErrNotFound
}

func (m *memStore) SaveAnswer(surveyID, takerID string, in AnswerInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, categoryID, err := m.findQuestion(surveyID, in.QuestionID)
	if err != nil {
		return err
	}
	if _, frozen := m.submissions[subKey(surveyID, categoryID, takerID)]; frozen {
		return ErrCategorySubmitted
	}

	m.responses[respKey(surveyID, in.QuestionID, takerID)] = &SurveyResponse{
		SurveyID:    surveyID,
		QuestionID:  in.QuestionID,
		TakerID:     takerID,
		AnswerValue: in.Value,
		Status:      ResponseInProgress,
		UpdatedAt:   time.Now(),
	}
	m.publish(StreamResponses, surveyID, nil)
	return nil
}

func (m *memStore) SubmitCategory(surveyID, takerID, categoryID string, answers []AnswerInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sv, ok := m.surveys[surveyID]
	if !ok {
		return ErrNotFound
	}
	if sv.ActiveCategory == nil || *sv.ActiveCategory != categoryID {
		return ErrCategoryNotActive
	}
	if _, exists := m.submissions[subKey(surveyID, categoryID, takerID)]; exists {
		return ErrCategorySubmitted
	}

	for _, answer := range answers {
		m.responses[respKey(surveyID, answer.QuestionID, takerID)] = &SurveyResponse{
			SurveyID:    surveyID,
			QuestionID:  answer.QuestionID,
			TakerID:     takerID,
			AnswerValue: answer.Value,
			Status:      ResponseSubmitted,
			UpdatedAt:   time.Now(),
		}
	}
	m.submissions[subKey(surveyID, categoryID, takerID)] = &CategorySubmission{
		ID:          uuid.NewString(),
		SurveyID:    surveyID,
		CategoryID:  categoryID,
		TakerID:     takerID,
		SubmittedAt: time.Now(),
	}
	m.publish(StreamResponses, surveyID, nil)
	return nil
}

func (m *memStore) HasSubmission(surveyID, categoryID, takerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.submissions[subKey(surveyID, categoryID, takerID)]
	return ok, nil
}

func (m *memStore) ListResponses(surveyID string) ([]ResponseRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []ResponseRow
	for _, resp := range m.responses {
		if resp.SurveyID == surveyID {
			rows = append(rows, ResponseRow{
				QuestionID:  resp.QuestionID,
				AnswerValue: resp.AnswerValue,
				TakerID:     resp.TakerID,
			})
		}
	}
	return rows, nil
}
