package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mtihani/core"
	"github.com/trezcool/mtihani/core/catalog"
)

type testRow struct {
	ID              string    `db:"id"`
	Title           string    `db:"title"`
	Description     string    `db:"description"`
	DurationSeconds int       `db:"duration_seconds"`
	PassingScore    int       `db:"passing_score"`
	NegativeMarking float64   `db:"negative_marking"`
	Sectioned       bool      `db:"sectioned"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r testRow) unpack() catalog.Test {
	return catalog.Test{
		ID:              r.ID,
		Title:           r.Title,
		Description:     r.Description,
		DurationSeconds: r.DurationSeconds,
		PassingScore:    r.PassingScore,
		NegativeMarking: r.NegativeMarking,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type sectionRow struct {
	ID       string `db:"id"`
	TestID   string `db:"test_id"`
	Title    string `db:"title"`
	Position int    `db:"position"`
}

type questionRow struct {
	ID            string         `db:"id"`
	TestID        string         `db:"test_id"`
	SectionID     sql.NullString `db:"section_id"`
	Prompt        string         `db:"prompt"`
	Options       pq.StringArray `db:"options"`
	CorrectOption int            `db:"correct_option"`
	Points        int            `db:"points"`
	Position      int            `db:"position"`
}

func (r questionRow) unpack() catalog.Question {
	return catalog.Question{
		ID:            r.ID,
		Prompt:        r.Prompt,
		Options:       r.Options,
		CorrectOption: r.CorrectOption,
		Points:        r.Points,
	}
}

type catalogRepository struct {
	db *sqlx.DB
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (repo *catalogRepository) CreateTest(ctx context.Context, test catalog.Test) (catalog.Test, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return catalog.Test{}, errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO test (id, title, description, duration_seconds, passing_score, negative_marking, sectioned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = tx.ExecContext(ctx, query,
		test.ID, test.Title, test.Description, test.DurationSeconds, test.PassingScore,
		test.NegativeMarking, len(test.Sections) > 0, test.CreatedAt, test.UpdatedAt)
	if err != nil {
		return catalog.Test{}, errors.Wrap(err, "inserting test")
	}

	for i, sec := range test.Sections {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO test_section (id, test_id, title, position) VALUES ($1, $2, $3, $4)`,
			sec.ID, test.ID, sec.Title, i)
		if err != nil {
			return catalog.Test{}, errors.Wrap(err, "inserting section")
		}
		if err = insertQuestions(ctx, tx, test.ID, sec.ID, sec.Questions); err != nil {
			return catalog.Test{}, err
		}
	}
	if err = insertQuestions(ctx, tx, test.ID, "", test.Questions); err != nil {
		return catalog.Test{}, err
	}

	if err = tx.Commit(); err != nil {
		return catalog.Test{}, errors.Wrap(err, "committing tx")
	}
	return test, nil
}

func insertQuestions(ctx context.Context, tx *sqlx.Tx, testID, sectionID string, questions []catalog.Question) error {
	query := `
		INSERT INTO test_question (id, test_id, section_id, prompt, options, correct_option, points, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for i, qst := range questions {
		secID := sql.NullString{String: sectionID, Valid: sectionID != ""}
		_, err := tx.ExecContext(ctx, query,
			qst.ID, testID, secID, qst.Prompt, pq.Array(qst.Options), qst.CorrectOption, qst.Points, i)
		if err != nil {
			return errors.Wrap(err, "inserting question")
		}
	}
	return nil
}

func (repo *catalogRepository) GetTest(ctx context.Context, id string) (catalog.Test, error) {
	var row testRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM test WHERE id = $1`, id); err != nil {
		return catalog.Test{}, trapNoRowsErr(err, catalog.ErrNotFound, "finding test")
	}
	test := row.unpack()

	var secRows []sectionRow
	err := repo.db.SelectContext(ctx, &secRows,
		`SELECT * FROM test_section WHERE test_id = $1 ORDER BY position`, id)
	if err != nil {
		return catalog.Test{}, errors.Wrap(err, "querying sections")
	}

	var qstRows []questionRow
	err = repo.db.SelectContext(ctx, &qstRows,
		`SELECT * FROM test_question WHERE test_id = $1 ORDER BY position`, id)
	if err != nil {
		return catalog.Test{}, errors.Wrap(err, "querying questions")
	}

	bySection := make(map[string][]catalog.Question, len(secRows))
	for _, qr := range qstRows {
		if qr.SectionID.Valid {
			bySection[qr.SectionID.String] = append(bySection[qr.SectionID.String], qr.unpack())
		} else {
			test.Questions = append(test.Questions, qr.unpack())
		}
	}
	for _, sr := range secRows {
		test.Sections = append(test.Sections, catalog.Section{
			ID:        sr.ID,
			Title:     sr.Title,
			Questions: bySection[sr.ID],
		})
	}
	return test, nil
}

// QueryAllTests returns test rows without their sections and questions;
// GetTest loads the full structure.
func (repo *catalogRepository) QueryAllTests(ctx context.Context, ordering ...core.DBOrdering) ([]catalog.Test, error) {
	query := `SELECT * FROM test` + orderByClause(ordering)

	var rows []testRow
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}
	tests := make([]catalog.Test, 0, len(rows))
	for _, row := range rows {
		tests = append(tests, row.unpack())
	}
	return tests, nil
}

func (repo *catalogRepository) DeleteTestsByID(ctx context.Context, ids ...string) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM test WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting tests")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
