package session

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mtihani/core"
	"github.com/trezcool/mtihani/core/catalog"
	"github.com/trezcool/mtihani/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors; each maps to a distinct user-facing message (and HTTP status)
	// so a test-taker knows whether to wait, retry or contact support.
	ErrLinkNotFound    = errors.New("test link not found")
	ErrLinkForbidden   = errors.New("this test link belongs to another user")
	ErrLinkUsed        = errors.New("this test link has already been used")
	ErrLinkExpired     = errors.New("this test link has expired")
	ErrAttemptNotFound = errors.New("test attempt not found")
	ErrNotOwner        = errors.New("this attempt belongs to another user")
	ErrAttemptSealed   = errors.New("this attempt has already been submitted")
	ErrUnknownQuestion = errors.New("this question does not belong to the test")
	ErrInvalidOption   = errors.New("the selected option does not exist for this question")

	// ErrSealConflict is returned by Repository.SealAttempt when the
	// attempt was sealed by a concurrent submission. It never reaches
	// callers: the service re-reads and returns the sealed result.
	ErrSealConflict = errors.New("attempt already sealed")
)

// NotYetAvailableError is returned when a link's window has not opened
// yet; it carries the opening time so callers can render a wait message.
type NotYetAvailableError struct {
	AvailableFrom time.Time
}

func (e *NotYetAvailableError) Error() string {
	return fmt.Sprintf("this test is not available until %s", e.AvailableFrom.UTC().Format(time.RFC1123))
}

type (
	Repository interface {
		CreateLink(ctx context.Context, link Link) (Link, error)
		GetLink(ctx context.Context, id string) (Link, error)
		QueryLinks(ctx context.Context, filter LinkFilter) ([]Link, error)
		// MarkLinkUsed sets UsedAt only if it is not already set.
		MarkLinkUsed(ctx context.Context, id string, usedAt time.Time) error

		CreateAttempt(ctx context.Context, att Attempt) (Attempt, error)
		GetAttempt(ctx context.Context, id string) (Attempt, error)
		// GetOpenAttemptByLink returns the unsealed attempt for a link,
		// or ErrAttemptNotFound if none exists.
		GetOpenAttemptByLink(ctx context.Context, linkID string) (Attempt, error)
		// SaveAnswer upserts one answer; last write wins per question.
		SaveAnswer(ctx context.Context, attemptID, questionID string, selectedOption int) error
		// SealAttempt persists SubmittedAt and the scores, conditional on
		// the stored attempt being unsealed; returns ErrSealConflict when
		// a concurrent submission won the race.
		SealAttempt(ctx context.Context, att Attempt) (Attempt, error)
	}

	ServiceInterface interface {
		IssueLink(ctx context.Context, nl NewLink) (Link, error)
		GetLink(ctx context.Context, id string) (Link, error)
		QueryLinks(ctx context.Context, filter LinkFilter) ([]Link, error)
		Start(ctx context.Context, linkID string, caller user.User) (Attempt, catalog.Test, error)
		Answer(ctx context.Context, attemptID string, caller user.User, questionID string, selectedOption int) error
		Submit(ctx context.Context, attemptID string, caller user.User) (Result, error)
		GetAttempt(ctx context.Context, attemptID string, caller user.User) (Attempt, error)
	}

	service struct {
		repo    Repository
		catSvc  catalog.ServiceInterface
		usrSvc  user.ServiceInterface
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	catSvc catalog.ServiceInterface,
	usrSvc user.ServiceInterface,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *service {
	return &service{
		repo:    repo,
		catSvc:  catSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

// IssueLink creates a single-use, time-windowed link binding one user to
// one test and emails the recipient the attempt URL.
func (svc *service) IssueLink(ctx context.Context, nl NewLink) (Link, error) {
	test, err := svc.catSvc.GetByID(ctx, nl.TestID)
	if err != nil {
		return Link{}, err
	}
	usr, err := svc.usrSvc.GetByID(ctx, nl.UserID)
	if err != nil {
		return Link{}, err
	}

	now := NowFunc().UTC()
	link := Link{
		ID:            uuid.New().String(),
		TestID:        test.ID,
		UserID:        usr.ID,
		AvailableFrom: nl.AvailableFrom.UTC(),
		ExpiresAt:     nl.ExpiresAt.UTC(),
		CreatedAt:     now,
	}
	if nl.AvailableFrom.IsZero() {
		link.AvailableFrom = now
	}
	if nl.ExpiresAt.IsZero() {
		link.ExpiresAt = link.AvailableFrom.Add(svc.conf.Session.DefaultLinkTTL)
	}

	link, err = svc.repo.CreateLink(ctx, link)
	if err != nil {
		return Link{}, errors.Wrap(err, "creating link")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "You are invited to take " + test.Title,
		TemplateName: "test-invite",
		TemplateData: struct {
			Name          string
			TestTitle     string
			LinkID        string
			AvailableFrom time.Time
			ExpiresAt     time.Time
		}{usr.Name, test.Title, link.ID, link.AvailableFrom, link.ExpiresAt},
	})
	return link, nil
}

func (svc *service) GetLink(ctx context.Context, id string) (Link, error) {
	return svc.repo.GetLink(ctx, id)
}

func (svc *service) QueryLinks(ctx context.Context, filter LinkFilter) ([]Link, error) {
	return svc.repo.QueryLinks(ctx, filter)
}

// Start validates a link for the caller and returns the open attempt for
// it, creating one on first call. Validation never mutates the link, so a
// page reload mid-test resumes the same attempt without burning the link.
func (svc *service) Start(ctx context.Context, linkID string, caller user.User) (Attempt, catalog.Test, error) {
	link, err := svc.repo.GetLink(ctx, linkID)
	if err != nil {
		if errors.Cause(err) == ErrLinkNotFound {
			return Attempt{}, catalog.Test{}, ErrLinkNotFound
		}
		return Attempt{}, catalog.Test{}, errors.Wrap(err, "finding link")
	}
	if link.UserID != caller.ID {
		return Attempt{}, catalog.Test{}, ErrLinkForbidden
	}

	now := NowFunc().UTC()
	switch link.Status(now) {
	case LinkStatusUsed:
		return Attempt{}, catalog.Test{}, ErrLinkUsed
	case LinkStatusPending:
		return Attempt{}, catalog.Test{}, &NotYetAvailableError{AvailableFrom: link.AvailableFrom}
	case LinkStatusExpired:
		return Attempt{}, catalog.Test{}, ErrLinkExpired
	}

	test, err := svc.catSvc.GetByID(ctx, link.TestID)
	if err != nil {
		return Attempt{}, catalog.Test{}, errors.Wrap(err, "finding test")
	}

	att, err := svc.repo.GetOpenAttemptByLink(ctx, link.ID)
	if err != nil {
		if errors.Cause(err) != ErrAttemptNotFound {
			return Attempt{}, catalog.Test{}, errors.Wrap(err, "finding open attempt")
		}
		att, err = svc.repo.CreateAttempt(ctx, Attempt{
			ID:        uuid.New().String(),
			LinkID:    link.ID,
			TestID:    test.ID,
			UserID:    caller.ID,
			StartedAt: now,
			Answers:   map[string]int{},
		})
		if err != nil {
			return Attempt{}, catalog.Test{}, errors.Wrap(err, "creating attempt")
		}
	}
	return att, test, nil
}

// Answer records one answer on an open attempt; a question may be
// re-answered any number of times before submission, last write wins.
func (svc *service) Answer(ctx context.Context, attemptID string, caller user.User, questionID string, selectedOption int) error {
	att, err := svc.getOwnedAttempt(ctx, attemptID, caller)
	if err != nil {
		return err
	}
	if att.Sealed() {
		return ErrAttemptSealed
	}

	test, err := svc.catSvc.GetByID(ctx, att.TestID)
	if err != nil {
		return errors.Wrap(err, "finding test")
	}
	q, ok := test.FindQuestion(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if selectedOption < 0 || selectedOption >= len(q.Options) {
		return ErrInvalidOption
	}

	if err := svc.repo.SaveAnswer(ctx, att.ID, questionID, selectedOption); err != nil {
		return errors.Wrap(err, "saving answer")
	}
	return nil
}

// Submit seals the attempt, computes its score and marks the originating
// link used, exactly once. Submitting an already-sealed attempt returns
// the original result, so client retries on flaky networks are harmless.
func (svc *service) Submit(ctx context.Context, attemptID string, caller user.User) (Result, error) {
	att, err := svc.getOwnedAttempt(ctx, attemptID, caller)
	if err != nil {
		return Result{}, err
	}
	if att.Sealed() {
		return att.result(), nil
	}

	test, err := svc.catSvc.GetByID(ctx, att.TestID)
	if err != nil {
		return Result{}, errors.Wrap(err, "finding test")
	}

	res := scoreAttempt(test, att.Answers, svc.conf.Session.ClampNegativeTotal)
	att.SubmittedAt = NowFunc().UTC()
	att.RawScore = res.RawScore
	att.MaxScore = res.MaxScore
	att.Score = res.Percentage
	att.Passed = res.Passed

	sealed, err := svc.repo.SealAttempt(ctx, att)
	if err != nil {
		if errors.Cause(err) != ErrSealConflict {
			return Result{}, errors.Wrap(err, "sealing attempt")
		}
		// a concurrent submission won the race; surface its result
		sealed, err = svc.repo.GetAttempt(ctx, att.ID)
		if err != nil {
			return Result{}, errors.Wrap(err, "re-reading sealed attempt")
		}
		return sealed.result(), nil
	}

	// the winner marks the link used and notifies; neither may fail the
	// submission.
	if err := svc.repo.MarkLinkUsed(ctx, att.LinkID, sealed.SubmittedAt); err != nil {
		svc.logger.Error("marking link used", errors.Wrap(err, att.LinkID), caller)
	}
	svc.notifyCompletion(test, caller, sealed.result())

	return sealed.result(), nil
}

func (svc *service) GetAttempt(ctx context.Context, attemptID string, caller user.User) (Attempt, error) {
	if caller.IsAdmin() || caller.IsTeacher() {
		return svc.repo.GetAttempt(ctx, attemptID)
	}
	return svc.getOwnedAttempt(ctx, attemptID, caller)
}

func (svc *service) getOwnedAttempt(ctx context.Context, attemptID string, caller user.User) (Attempt, error) {
	att, err := svc.repo.GetAttempt(ctx, attemptID)
	if err != nil {
		if errors.Cause(err) == ErrAttemptNotFound {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, errors.Wrap(err, "finding attempt")
	}
	if !callerOwns(att, caller) {
		return Attempt{}, ErrNotOwner
	}
	return att, nil
}

func (svc *service) notifyCompletion(test catalog.Test, usr user.User, res Result) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your results for " + test.Title,
		TemplateName: "test-results",
		TemplateData: struct {
			Name      string
			TestTitle string
			Result    Result
		}{usr.Name, test.Title, res},
	})
}
