package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mtihani/core/session"
)

type linkRow struct {
	ID            string       `db:"id"`
	TestID        string       `db:"test_id"`
	UserID        string       `db:"user_id"`
	AvailableFrom time.Time    `db:"available_from"`
	ExpiresAt     time.Time    `db:"expires_at"`
	UsedAt        sql.NullTime `db:"used_at"`
	CreatedAt     time.Time    `db:"created_at"`
}

func (r linkRow) unpack() session.Link {
	link := session.Link{
		ID:            r.ID,
		TestID:        r.TestID,
		UserID:        r.UserID,
		AvailableFrom: r.AvailableFrom,
		ExpiresAt:     r.ExpiresAt,
		CreatedAt:     r.CreatedAt,
	}
	if r.UsedAt.Valid {
		link.UsedAt = r.UsedAt.Time
	}
	return link
}

type attemptRow struct {
	ID          string       `db:"id"`
	LinkID      string       `db:"link_id"`
	TestID      string       `db:"test_id"`
	UserID      string       `db:"user_id"`
	StartedAt   time.Time    `db:"started_at"`
	SubmittedAt sql.NullTime `db:"submitted_at"`
	RawScore    float64      `db:"raw_score"`
	MaxScore    int          `db:"max_score"`
	Score       int          `db:"score"`
	Passed      bool         `db:"passed"`
}

func (r attemptRow) unpack() session.Attempt {
	att := session.Attempt{
		ID:        r.ID,
		LinkID:    r.LinkID,
		TestID:    r.TestID,
		UserID:    r.UserID,
		StartedAt: r.StartedAt,
		RawScore:  r.RawScore,
		MaxScore:  r.MaxScore,
		Score:     r.Score,
		Passed:    r.Passed,
		Answers:   map[string]int{},
	}
	if r.SubmittedAt.Valid {
		att.SubmittedAt = r.SubmittedAt.Time
	}
	return att
}

type answerRow struct {
	AttemptID      string `db:"attempt_id"`
	QuestionID     string `db:"question_id"`
	SelectedOption int    `db:"selected_option"`
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateLink(ctx context.Context, link session.Link) (session.Link, error) {
	query := `
		INSERT INTO test_link (id, test_id, user_id, available_from, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, query,
		link.ID, link.TestID, link.UserID, link.AvailableFrom, link.ExpiresAt, link.CreatedAt)
	if err != nil {
		return session.Link{}, errors.Wrap(err, "inserting link")
	}
	return link, nil
}

func (repo *sessionRepository) GetLink(ctx context.Context, id string) (session.Link, error) {
	if _, err := uuid.Parse(id); err != nil {
		return session.Link{}, session.ErrLinkNotFound
	}
	var row linkRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM test_link WHERE id = $1`, id); err != nil {
		return session.Link{}, trapNoRowsErr(err, session.ErrLinkNotFound, "finding link")
	}
	return row.unpack(), nil
}

func (repo *sessionRepository) QueryLinks(ctx context.Context, filter session.LinkFilter) ([]session.Link, error) {
	query := `SELECT * FROM test_link WHERE ($1 = '' OR test_id::text = $1) AND ($2 = '' OR user_id::text = $2) ORDER BY created_at DESC`

	var rows []linkRow
	if err := repo.db.SelectContext(ctx, &rows, query, filter.TestID, filter.UserID); err != nil {
		return nil, errors.Wrap(err, "querying links")
	}
	links := make([]session.Link, 0, len(rows))
	for _, row := range rows {
		links = append(links, row.unpack())
	}
	return links, nil
}

func (repo *sessionRepository) MarkLinkUsed(ctx context.Context, id string, usedAt time.Time) error {
	// guarded so the first submission's timestamp sticks
	query := `UPDATE test_link SET used_at = $2 WHERE id = $1 AND used_at IS NULL`
	if _, err := repo.db.ExecContext(ctx, query, id, usedAt); err != nil {
		return errors.Wrap(err, "marking link used")
	}
	return nil
}

func (repo *sessionRepository) CreateAttempt(ctx context.Context, att session.Attempt) (session.Attempt, error) {
	query := `
		INSERT INTO test_attempt (id, link_id, test_id, user_id, started_at, raw_score, max_score, score, passed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, query,
		att.ID, att.LinkID, att.TestID, att.UserID, att.StartedAt, att.RawScore, att.MaxScore, att.Score, att.Passed)
	if err != nil {
		return session.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return att, nil
}

func (repo *sessionRepository) GetAttempt(ctx context.Context, id string) (session.Attempt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return session.Attempt{}, session.ErrAttemptNotFound
	}
	var row attemptRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM test_attempt WHERE id = $1`, id); err != nil {
		return session.Attempt{}, trapNoRowsErr(err, session.ErrAttemptNotFound, "finding attempt")
	}
	return repo.loadAnswers(ctx, row.unpack())
}

func (repo *sessionRepository) GetOpenAttemptByLink(ctx context.Context, linkID string) (session.Attempt, error) {
	var row attemptRow
	query := `SELECT * FROM test_attempt WHERE link_id = $1 AND submitted_at IS NULL`
	if err := repo.db.GetContext(ctx, &row, query, linkID); err != nil {
		return session.Attempt{}, trapNoRowsErr(err, session.ErrAttemptNotFound, "finding open attempt")
	}
	return repo.loadAnswers(ctx, row.unpack())
}

func (repo *sessionRepository) loadAnswers(ctx context.Context, att session.Attempt) (session.Attempt, error) {
	var rows []answerRow
	query := `SELECT * FROM attempt_answer WHERE attempt_id = $1`
	if err := repo.db.SelectContext(ctx, &rows, query, att.ID); err != nil {
		return session.Attempt{}, errors.Wrap(err, "querying answers")
	}
	for _, row := range rows {
		att.Answers[row.QuestionID] = row.SelectedOption
	}
	return att, nil
}

func (repo *sessionRepository) SaveAnswer(ctx context.Context, attemptID, questionID string, selectedOption int) error {
	query := `
		INSERT INTO attempt_answer (attempt_id, question_id, selected_option)
		VALUES ($1, $2, $3)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET selected_option = EXCLUDED.selected_option`
	if _, err := repo.db.ExecContext(ctx, query, attemptID, questionID, selectedOption); err != nil {
		return errors.Wrap(err, "upserting answer")
	}
	return nil
}

func (repo *sessionRepository) SealAttempt(ctx context.Context, att session.Attempt) (session.Attempt, error) {
	// conditional write; losing a concurrent race surfaces as ErrSealConflict
	query := `
		UPDATE test_attempt
		SET submitted_at = $2, raw_score = $3, max_score = $4, score = $5, passed = $6
		WHERE id = $1 AND submitted_at IS NULL`
	res, err := repo.db.ExecContext(ctx, query,
		att.ID, att.SubmittedAt, att.RawScore, att.MaxScore, att.Score, att.Passed)
	if err != nil {
		return session.Attempt{}, errors.Wrap(err, "sealing attempt")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.Attempt{}, session.ErrSealConflict
	}
	return att, nil
}
