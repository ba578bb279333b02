package survey

import "errors"

// Failure classes. Handlers map these onto HTTP statuses; everything else
// is treated as an internal error.
var (
	// ErrNotFound: the referenced survey, category or question does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotOwner: the caller is not the survey's owner.
	ErrNotOwner = errors.New("caller is not the survey owner")

	// ErrCategoryNotActive: a submit targeted a category that is not the
	// survey's current active category.
	ErrCategoryNotActive = errors.New("category is not active")

	// ErrCategorySubmitted: the taker already holds a submission receipt for
	// this category; its answers are frozen.
	ErrCategorySubmitted = errors.New("category already submitted")

	// ErrWrongSurvey: a category or question id does not belong to the
	// survey named in the request.
	ErrWrongSurvey = errors.New("resource does not belong to survey")
)
