package session

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mtihani/core"
	"github.com/trezcool/mtihani/core/user"
)

type LinkStatus string

const (
	LinkStatusPending   LinkStatus = "pending"
	LinkStatusAvailable LinkStatus = "available"
	LinkStatusUsed      LinkStatus = "used"
	LinkStatusExpired   LinkStatus = "expired"
)

// Link is a scoped, time-windowed, single-use authorization binding one
// user to one test. Its status is derived from UsedAt and the window
// bounds; it is never stored separately.
type Link struct {
	ID            string    `json:"id"`
	TestID        string    `json:"test_id"`
	UserID        string    `json:"user_id"`
	AvailableFrom time.Time `json:"available_from"` // UTC
	ExpiresAt     time.Time `json:"expires_at"`     // UTC
	UsedAt        time.Time `json:"used_at"`        // UTC; zero until used
	CreatedAt     time.Time `json:"created_at"`     // UTC
}

func (l Link) Used() bool { return !l.UsedAt.IsZero() }

// Status derives the link's state at the given instant.
func (l Link) Status(now time.Time) LinkStatus {
	switch {
	case l.Used():
		return LinkStatusUsed
	case now.Before(l.AvailableFrom):
		return LinkStatusPending
	case now.After(l.ExpiresAt):
		return LinkStatusExpired
	default:
		return LinkStatusAvailable
	}
}

// Attempt is one user's pass at answering a test's questions. Once
// SubmittedAt is set the attempt is sealed: answers and scores are final.
type Attempt struct {
	ID          string         `json:"id"`
	LinkID      string         `json:"link_id"`
	TestID      string         `json:"test_id"`
	UserID      string         `json:"user_id"`
	StartedAt   time.Time      `json:"started_at"`   // UTC
	SubmittedAt time.Time      `json:"submitted_at"` // UTC; zero until sealed
	Answers     map[string]int `json:"answers"`      // questionID -> selected option index
	RawScore    float64        `json:"raw_score"`
	MaxScore    int            `json:"max_score"`
	Score       int            `json:"score"` // percentage; set iff sealed
	Passed      bool           `json:"passed"`
}

func (a Attempt) Sealed() bool { return !a.SubmittedAt.IsZero() }

func (a Attempt) result() Result {
	return Result{
		Percentage: a.Score,
		Passed:     a.Passed,
		RawScore:   a.RawScore,
		MaxScore:   a.MaxScore,
	}
}

// Result is the graded outcome of a sealed attempt.
type Result struct {
	Percentage int     `json:"percentage"`
	Passed     bool    `json:"passed"`
	RawScore   float64 `json:"raw_score"`
	MaxScore   int     `json:"max_score"`
}

// NewLink contains information needed to issue a test link.
// A zero AvailableFrom means "now"; a zero ExpiresAt defaults to
// AvailableFrom plus the configured TTL.
type NewLink struct {
	TestID        string    `json:"test_id" validate:"required"`
	UserID        string    `json:"user_id" validate:"required"`
	AvailableFrom time.Time `json:"available_from"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func (nl *NewLink) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	if err := validate.Struct(nl); err != nil {
		return err
	}
	if !nl.ExpiresAt.IsZero() {
		from := nl.AvailableFrom
		if from.IsZero() {
			from = NowFunc().UTC()
		}
		if !from.Before(nl.ExpiresAt) {
			return core.NewValidationError(
				nil,
				core.FieldError{Field: "expires_at", Error: "must be after available_from"},
			)
		}
	}
	return nil
}

// LinkFilter restricts QueryLinks; zero fields are ignored.
type LinkFilter struct {
	TestID string `query:"test_id"`
	UserID string `query:"user_id"`
}

// callerOwns reports whether the given user owns the attempt.
func callerOwns(a Attempt, usr user.User) bool { return a.UserID == usr.ID }
