package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mtihani/core/catalog"
	"github.com/trezcool/mtihani/core/session"
	"github.com/trezcool/mtihani/core/user"
	emailsvc "github.com/trezcool/mtihani/services/email"
	dummydb "github.com/trezcool/mtihani/storage/database/dummy"
	testutil "github.com/trezcool/mtihani/tests"
)

type fixture struct {
	repo    session.Repository
	usrRepo user.Repository
	catRepo catalog.Repository
	svc     session.ServiceInterface

	student user.User
	other   user.User
	teacher user.User
	test    catalog.Test
	q1, q2  catalog.Question
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := testutil.NewConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ClearSentMessages()

	f := &fixture{
		repo:    dummydb.NewSessionRepository(db),
		usrRepo: dummydb.NewUserRepository(db),
		catRepo: dummydb.NewCatalogRepository(db),
	}
	usrSvc := user.NewService(f.usrRepo, mailSvc, conf)
	catSvc := catalog.NewService(f.catRepo)
	f.svc = session.NewService(f.repo, catSvc, usrSvc, mailSvc, testutil.Logger{}, conf)

	f.student = testutil.CreateUser(t, f.usrRepo, "Amani", "amani@test.cd", "pwd", []string{user.RoleStudent}, true)
	f.other = testutil.CreateUser(t, f.usrRepo, "Baraka", "baraka@test.cd", "pwd", []string{user.RoleStudent}, true)
	f.teacher = testutil.CreateUser(t, f.usrRepo, "Mwalimu", "mwalimu@test.cd", "pwd", []string{user.RoleTeacher}, true)

	f.q1 = testutil.NewQuestion("1+1?", []string{"1", "2", "3"}, 1, 1)
	f.q2 = testutil.NewQuestion("2+2?", []string{"2", "4"}, 1, 1)
	f.test = testutil.CreateTest(t, f.catRepo, "Arithmetic", 50, 0, f.q1, f.q2)
	return f
}

func (f *fixture) openLink(t *testing.T) session.Link {
	now := time.Now()
	return testutil.CreateLink(t, f.repo, f.test.ID, f.student.ID, now.Add(-time.Hour), now.Add(time.Hour))
}

func Test_service_Start(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Now()

	t.Run("unknown link", func(t *testing.T) {
		_, _, err := f.svc.Start(ctx, "b5bdb43f-acf9-47ed-a1e2-a4e27d8eefc9", f.student)
		assert.Equal(t, session.ErrLinkNotFound, err)
	})

	t.Run("someone else's link", func(t *testing.T) {
		link := f.openLink(t)
		_, _, err := f.svc.Start(ctx, link.ID, f.other)
		assert.Equal(t, session.ErrLinkForbidden, err)
	})

	t.Run("link not yet available", func(t *testing.T) {
		link := testutil.CreateLink(t, f.repo, f.test.ID, f.student.ID, now.Add(time.Hour), now.Add(2*time.Hour))
		_, _, err := f.svc.Start(ctx, link.ID, f.student)
		nyaErr, ok := err.(*session.NotYetAvailableError)
		require.True(t, ok, "want NotYetAvailableError, got %v", err)
		assert.Equal(t, link.AvailableFrom, nyaErr.AvailableFrom)
	})

	t.Run("expired link", func(t *testing.T) {
		link := testutil.CreateLink(t, f.repo, f.test.ID, f.student.ID, now.Add(-2*time.Hour), now.Add(-time.Hour))
		_, _, err := f.svc.Start(ctx, link.ID, f.student)
		assert.Equal(t, session.ErrLinkExpired, err)
	})

	t.Run("open link starts an attempt", func(t *testing.T) {
		link := f.openLink(t)
		att, test, err := f.svc.Start(ctx, link.ID, f.student)
		require.NoError(t, err)
		assert.Equal(t, f.test.ID, test.ID)
		assert.Equal(t, link.ID, att.LinkID)
		assert.Equal(t, f.student.ID, att.UserID)
		assert.False(t, att.Sealed())

		// the link itself is untouched
		refreshed, err := f.repo.GetLink(ctx, link.ID)
		require.NoError(t, err)
		assert.False(t, refreshed.Used())
	})

	t.Run("restart resumes the open attempt", func(t *testing.T) {
		link := f.openLink(t)
		att1, _, err := f.svc.Start(ctx, link.ID, f.student)
		require.NoError(t, err)

		require.NoError(t, f.svc.Answer(ctx, att1.ID, f.student, f.q1.ID, 1))

		att2, _, err := f.svc.Start(ctx, link.ID, f.student)
		require.NoError(t, err)
		assert.Equal(t, att1.ID, att2.ID)
		assert.Equal(t, map[string]int{f.q1.ID: 1}, att2.Answers)
	})

	t.Run("used link", func(t *testing.T) {
		link := f.openLink(t)
		att, _, err := f.svc.Start(ctx, link.ID, f.student)
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, att.ID, f.student)
		require.NoError(t, err)

		_, _, err = f.svc.Start(ctx, link.ID, f.student)
		assert.Equal(t, session.ErrLinkUsed, err)
	})
}

func Test_service_Answer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	link := f.openLink(t)
	att, _, err := f.svc.Start(ctx, link.ID, f.student)
	require.NoError(t, err)

	t.Run("unknown attempt", func(t *testing.T) {
		err := f.svc.Answer(ctx, "b5bdb43f-acf9-47ed-a1e2-a4e27d8eefc9", f.student, f.q1.ID, 0)
		assert.Equal(t, session.ErrAttemptNotFound, err)
	})

	t.Run("someone else's attempt", func(t *testing.T) {
		err := f.svc.Answer(ctx, att.ID, f.other, f.q1.ID, 0)
		assert.Equal(t, session.ErrNotOwner, err)
	})

	t.Run("unknown question", func(t *testing.T) {
		err := f.svc.Answer(ctx, att.ID, f.student, "nope", 0)
		assert.Equal(t, session.ErrUnknownQuestion, err)
	})

	t.Run("option out of range", func(t *testing.T) {
		assert.Equal(t, session.ErrInvalidOption, f.svc.Answer(ctx, att.ID, f.student, f.q1.ID, 3))
		assert.Equal(t, session.ErrInvalidOption, f.svc.Answer(ctx, att.ID, f.student, f.q1.ID, -1))
	})

	t.Run("last write wins", func(t *testing.T) {
		require.NoError(t, f.svc.Answer(ctx, att.ID, f.student, f.q1.ID, 0))
		require.NoError(t, f.svc.Answer(ctx, att.ID, f.student, f.q1.ID, 2))

		refreshed, err := f.svc.GetAttempt(ctx, att.ID, f.student)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{f.q1.ID: 2}, refreshed.Answers)
	})

	t.Run("sealed attempt rejects answers", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, att.ID, f.student)
		require.NoError(t, err)

		err = f.svc.Answer(ctx, att.ID, f.student, f.q1.ID, 1)
		assert.Equal(t, session.ErrAttemptSealed, err)
	})
}

func Test_service_Submit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("scores and uses the link", func(t *testing.T) {
		link := f.openLink(t)
		att, _, err := f.svc.Start(ctx, link.ID, f.student)
		require.NoError(t, err)
		require.NoError(t, f.svc.Answer(ctx, att.ID, f.student, f.q1.ID, 1)) // correct
		require.NoError(t, f.svc.Answer(ctx, att.ID, f.student, f.q2.ID, 0)) // wrong

		res, err := f.svc.Submit(ctx, att.ID, f.student)
		require.NoError(t, err)
		assert.Equal(t, session.Result{Percentage: 50, Passed: true, RawScore: 1, MaxScore: 2}, res)

		refreshed, err := f.repo.GetLink(ctx, link.ID)
		require.NoError(t, err)
		assert.True(t, refreshed.Used())
	})

	t.Run("resubmission returns the original result", func(t *testing.T) {
		link := f.openLink(t)
		att, _, err := f.svc.Start(ctx, link.ID, f.student)
		require.NoError(t, err)
		require.NoError(t, f.svc.Answer(ctx, att.ID, f.student, f.q1.ID, 1))
		require.NoError(t, f.svc.Answer(ctx, att.ID, f.student, f.q2.ID, 1))

		res1, err := f.svc.Submit(ctx, att.ID, f.student)
		require.NoError(t, err)
		used, err := f.repo.GetLink(ctx, link.ID)
		require.NoError(t, err)

		res2, err := f.svc.Submit(ctx, att.ID, f.student)
		require.NoError(t, err)
		assert.Equal(t, res1, res2)
		assert.Equal(t, session.Result{Percentage: 100, Passed: true, RawScore: 2, MaxScore: 2}, res2)

		// the link's used timestamp did not move
		refreshed, err := f.repo.GetLink(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, used.UsedAt, refreshed.UsedAt)
	})

	t.Run("concurrent submissions agree on one result", func(t *testing.T) {
		link := f.openLink(t)
		att, _, err := f.svc.Start(ctx, link.ID, f.student)
		require.NoError(t, err)
		require.NoError(t, f.svc.Answer(ctx, att.ID, f.student, f.q1.ID, 1))

		const n = 8
		results := make([]session.Result, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = f.svc.Submit(ctx, att.ID, f.student)
			}(i)
		}
		wg.Wait()

		want := session.Result{Percentage: 50, Passed: true, RawScore: 1, MaxScore: 2}
		for i := 0; i < n; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, want, results[i])
		}
	})

	t.Run("notifies the taker", func(t *testing.T) {
		emailsvc.ClearSentMessages()

		link := f.openLink(t)
		att, _, err := f.svc.Start(ctx, link.ID, f.student)
		require.NoError(t, err)
		_, err = f.svc.Submit(ctx, att.ID, f.student)
		require.NoError(t, err)

		require.Len(t, emailsvc.SentMessages, 1)
		msg := emailsvc.SentMessages[0]
		assert.Equal(t, f.student.Email, msg.To[0].Address)
		assert.Contains(t, msg.Subject, f.test.Title)
	})
}

func Test_service_IssueLink(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("unknown test", func(t *testing.T) {
		_, err := f.svc.IssueLink(ctx, session.NewLink{TestID: "nope", UserID: f.student.ID})
		assert.Equal(t, catalog.ErrNotFound, err)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.svc.IssueLink(ctx, session.NewLink{TestID: f.test.ID, UserID: "nope"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("defaults the window and emails an invite", func(t *testing.T) {
		emailsvc.ClearSentMessages()

		link, err := f.svc.IssueLink(ctx, session.NewLink{TestID: f.test.ID, UserID: f.student.ID})
		require.NoError(t, err)
		assert.False(t, link.AvailableFrom.IsZero())
		assert.Equal(t, link.AvailableFrom.Add(7*24*time.Hour), link.ExpiresAt)
		assert.Equal(t, session.LinkStatusAvailable, link.Status(time.Now()))

		require.Len(t, emailsvc.SentMessages, 1)
		assert.Equal(t, f.student.Email, emailsvc.SentMessages[0].To[0].Address)
	})
}

func Test_service_GetAttempt(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	link := f.openLink(t)
	att, _, err := f.svc.Start(ctx, link.ID, f.student)
	require.NoError(t, err)

	t.Run("owner can read", func(t *testing.T) {
		got, err := f.svc.GetAttempt(ctx, att.ID, f.student)
		require.NoError(t, err)
		assert.Equal(t, att.ID, got.ID)
	})

	t.Run("another student cannot", func(t *testing.T) {
		_, err := f.svc.GetAttempt(ctx, att.ID, f.other)
		assert.Equal(t, session.ErrNotOwner, err)
	})

	t.Run("a teacher can", func(t *testing.T) {
		got, err := f.svc.GetAttempt(ctx, att.ID, f.teacher)
		require.NoError(t, err)
		assert.Equal(t, att.ID, got.ID)
	})
}
