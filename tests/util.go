package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mtihani/core"
	"github.com/trezcool/mtihani/core/catalog"
	"github.com/trezcool/mtihani/core/session"
	"github.com/trezcool/mtihani/core/user"
)

// NewConfig returns a self-contained test configuration; nothing is read
// from the environment.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:             "TEST",
		Build:           "test",
		Debug:           false,
		TestMode:        true,
		AppName:         "Mtihani",
		WorkDir:         core.Getwd(),
		SecretKey:       []byte("secret"),
		FrontendBaseURL: "http://localhost:3000",
		DefaultFromEmail: mail.Address{
			Name:    "Mtihani",
			Address: "noreply@test.cd",
		},
	}
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.Session.DefaultLinkTTL = 7 * 24 * time.Hour
	conf.Session.ClampNegativeTotal = true
	return conf
}

// Logger is a no-op core.Logger.
type Logger struct{}

var _ core.Logger = (*Logger)(nil)

func (Logger) Enable(bool)                  {}
func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	roles []string,
	isActive bool,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// NewQuestion builds a persisted-looking Question with a fresh ID.
func NewQuestion(prompt string, options []string, correctOption, points int) catalog.Question {
	return catalog.Question{
		ID:            uuid.New().String(),
		Prompt:        prompt,
		Options:       options,
		CorrectOption: correctOption,
		Points:        points,
	}
}

func CreateTest(
	t *testing.T,
	repo catalog.Repository,
	title string,
	passingScore int,
	negativeMarking float64,
	questions ...catalog.Question,
) catalog.Test {
	t.Helper()

	tstamp := time.Now().UTC()
	test := catalog.Test{
		ID:              uuid.New().String(),
		Title:           title,
		DurationSeconds: 600,
		PassingScore:    passingScore,
		NegativeMarking: negativeMarking,
		Questions:       questions,
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	}
	test, err := repo.CreateTest(context.Background(), test)
	if err != nil {
		t.Fatalf("CreateTest() failed: %v", err)
	}
	return test
}

func CreateLink(
	t *testing.T,
	repo session.Repository,
	testID, userID string,
	availableFrom, expiresAt time.Time,
) session.Link {
	t.Helper()

	link := session.Link{
		ID:            uuid.New().String(),
		TestID:        testID,
		UserID:        userID,
		AvailableFrom: availableFrom.UTC(),
		ExpiresAt:     expiresAt.UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	link, err := repo.CreateLink(context.Background(), link)
	if err != nil {
		t.Fatalf("CreateLink() failed: %v", err)
	}
	return link
}
