package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/mtihani/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateLink(ctx context.Context, link session.Link) (session.Link, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.links[link.ID] = &link
	return link, nil
}

func (repo *sessionRepository) GetLink(ctx context.Context, id string) (session.Link, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if link, ok := repo.db.links[id]; ok {
		return *link, nil
	}
	return session.Link{}, session.ErrLinkNotFound
}

func (repo *sessionRepository) QueryLinks(ctx context.Context, filter session.LinkFilter) ([]session.Link, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	links := make([]session.Link, 0, len(repo.db.links))
	for _, link := range repo.db.links {
		if filter.TestID != "" && link.TestID != filter.TestID {
			continue
		}
		if filter.UserID != "" && link.UserID != filter.UserID {
			continue
		}
		links = append(links, *link)
	}
	return links, nil
}

func (repo *sessionRepository) MarkLinkUsed(ctx context.Context, id string, usedAt time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if link, ok := repo.db.links[id]; ok && !link.Used() {
		link.UsedAt = usedAt
	}
	return nil
}

func (repo *sessionRepository) CreateAttempt(ctx context.Context, att session.Attempt) (session.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := att
	stored.Answers = nil // answers live in their own table
	repo.db.attempts[att.ID] = &stored
	repo.db.answers[att.ID] = make(map[string]int)
	return att, nil
}

func (repo *sessionRepository) GetAttempt(ctx context.Context, id string) (session.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if att, ok := repo.db.attempts[id]; ok {
		return repo.withAnswers(*att), nil
	}
	return session.Attempt{}, session.ErrAttemptNotFound
}

func (repo *sessionRepository) GetOpenAttemptByLink(ctx context.Context, linkID string) (session.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, att := range repo.db.attempts {
		if att.LinkID == linkID && !att.Sealed() {
			return repo.withAnswers(*att), nil
		}
	}
	return session.Attempt{}, session.ErrAttemptNotFound
}

func (repo *sessionRepository) withAnswers(att session.Attempt) session.Attempt {
	answers := make(map[string]int, len(repo.db.answers[att.ID]))
	for qID, opt := range repo.db.answers[att.ID] {
		answers[qID] = opt
	}
	att.Answers = answers
	return att
}

func (repo *sessionRepository) SaveAnswer(ctx context.Context, attemptID, questionID string, selectedOption int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.attempts[attemptID]; !ok {
		return session.ErrAttemptNotFound
	}
	if repo.db.answers[attemptID] == nil {
		repo.db.answers[attemptID] = make(map[string]int)
	}
	repo.db.answers[attemptID][questionID] = selectedOption
	return nil
}

func (repo *sessionRepository) SealAttempt(ctx context.Context, att session.Attempt) (session.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.attempts[att.ID]
	if !ok {
		return session.Attempt{}, session.ErrAttemptNotFound
	}
	if stored.Sealed() {
		return session.Attempt{}, session.ErrSealConflict
	}
	stored.SubmittedAt = att.SubmittedAt
	stored.RawScore = att.RawScore
	stored.MaxScore = att.MaxScore
	stored.Score = att.Score
	stored.Passed = att.Passed
	return repo.withAnswers(*stored), nil
}
