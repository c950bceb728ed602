package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/mtihani/apps/api/echo"
	"github.com/trezcool/mtihani/core/catalog"
	"github.com/trezcool/mtihani/core/session"
	"github.com/trezcool/mtihani/core/user"
	emailsvc "github.com/trezcool/mtihani/services/email"
	testutil "github.com/trezcool/mtihani/tests"
)

type sessionFixture struct {
	app     Server
	student user.User
	other   user.User
	teacher user.User
	test    catalog.Test
	q1, q2  catalog.Question
}

func sessionSetup(t *testing.T) *sessionFixture {
	app := setup(t)

	f := &sessionFixture{
		app:     app,
		student: testutil.CreateUser(t, usrRepo, "Amani", "amani@test.cd", "s3cret", []string{user.RoleStudent}, true),
		other:   testutil.CreateUser(t, usrRepo, "Baraka", "baraka@test.cd", "s3cret", []string{user.RoleStudent}, true),
		teacher: testutil.CreateUser(t, usrRepo, "Mwalimu", "mwalimu@test.cd", "s3cret", []string{user.RoleTeacher}, true),
	}
	f.q1 = testutil.NewQuestion("1+1?", []string{"1", "2", "3"}, 1, 1)
	f.q2 = testutil.NewQuestion("2+2?", []string{"2", "4"}, 1, 1)
	f.test = testutil.CreateTest(t, catRepo, "Arithmetic", 50, 0, f.q1, f.q2)
	return f
}

func (f *sessionFixture) openLink(t *testing.T) session.Link {
	now := time.Now()
	return testutil.CreateLink(t, sessRepo, f.test.ID, f.student.ID, now.Add(-time.Hour), now.Add(time.Hour))
}

func (f *sessionFixture) startAttempt(t *testing.T, link session.Link) session.Attempt {
	t.Helper()

	body := marchallObj(t, echoMap{"link_id": link.ID})
	req, rec := newAuthRequest(http.MethodPost, "/v1/attempts", getToken(t, f.student), body)
	f.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Attempt session.Attempt `json:"attempt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Attempt
}

func TestSessionAPI_issueLink(t *testing.T) {
	f := sessionSetup(t)

	t.Run("student is forbidden", func(t *testing.T) {
		body := marchallObj(t, echoMap{"test_id": f.test.ID, "user_id": f.student.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/links", getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("teacher issues a link and the invite goes out", func(t *testing.T) {
		emailsvc.ClearSentMessages()

		body := marchallObj(t, echoMap{"test_id": f.test.ID, "user_id": f.student.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/links", getToken(t, f.teacher), body)
		f.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var link session.Link
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
		assert.Equal(t, f.test.ID, link.TestID)
		assert.Equal(t, f.student.ID, link.UserID)
		assert.True(t, link.ExpiresAt.After(link.AvailableFrom))

		require.Len(t, emailsvc.SentMessages, 1)
		assert.Equal(t, f.student.Email, emailsvc.SentMessages[0].To[0].Address)
	})

	t.Run("window must be ordered", func(t *testing.T) {
		now := time.Now()
		body := marchallObj(t, echoMap{
			"test_id":        f.test.ID,
			"user_id":        f.student.ID,
			"available_from": now.Add(2 * time.Hour),
			"expires_at":     now.Add(time.Hour),
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/links", getToken(t, f.teacher), body)
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoMap{"expires_at": "must be after available_from"}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func TestSessionAPI_start(t *testing.T) {
	f := sessionSetup(t)
	now := time.Now()

	t.Run("taker view hides the correct options", func(t *testing.T) {
		link := f.openLink(t)
		body := marchallObj(t, echoMap{"link_id": link.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attempts", getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), "correct_option")

		var resp struct {
			Attempt session.Attempt `json:"attempt"`
			Test    TakerTest       `json:"test"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, link.ID, resp.Attempt.LinkID)
		assert.Len(t, resp.Test.Questions, 2)
		assert.Equal(t, f.q1.Options, resp.Test.Questions[0].Options)
	})

	t.Run("someone else's link is forbidden", func(t *testing.T) {
		link := f.openLink(t)
		body := marchallObj(t, echoMap{"link_id": link.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attempts", getToken(t, f.other), body)
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "this test link belongs to another user"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("pending link conflicts and reports the opening time", func(t *testing.T) {
		link := testutil.CreateLink(t, sessRepo, f.test.ID, f.student.ID, now.Add(time.Hour), now.Add(2*time.Hour))
		body := marchallObj(t, echoMap{"link_id": link.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attempts", getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp struct {
			AvailableFrom time.Time `json:"available_from"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, link.AvailableFrom.Equal(resp.AvailableFrom))
	})

	t.Run("expired link is gone", func(t *testing.T) {
		link := testutil.CreateLink(t, sessRepo, f.test.ID, f.student.ID, now.Add(-2*time.Hour), now.Add(-time.Hour))
		body := marchallObj(t, echoMap{"link_id": link.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attempts", getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusGone,
			wantData: marchallObj(t, httpErr{Error: "this test link has expired"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("reload resumes the same attempt", func(t *testing.T) {
		link := f.openLink(t)
		att1 := f.startAttempt(t, link)
		att2 := f.startAttempt(t, link)
		assert.Equal(t, att1.ID, att2.ID)
	})
}

func TestSessionAPI_answerAndSubmit(t *testing.T) {
	f := sessionSetup(t)

	link := f.openLink(t)
	att := f.startAttempt(t, link)
	answersPath := "/v1/attempts/" + att.ID + "/answers"
	submitPath := "/v1/attempts/" + att.ID + "/submit"

	t.Run("records an answer", func(t *testing.T) {
		body := marchallObj(t, echoMap{"question_id": f.q1.ID, "selected_option": 1})
		req, rec := newAuthRequest(http.MethodPatch, answersPath, getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("option zero is a valid answer", func(t *testing.T) {
		body := marchallObj(t, echoMap{"question_id": f.q2.ID, "selected_option": 0})
		req, rec := newAuthRequest(http.MethodPatch, answersPath, getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("option out of range", func(t *testing.T) {
		body := marchallObj(t, echoMap{"question_id": f.q1.ID, "selected_option": 9})
		req, rec := newAuthRequest(http.MethodPatch, answersPath, getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "the selected option does not exist for this question"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown question", func(t *testing.T) {
		body := marchallObj(t, echoMap{"question_id": "nope", "selected_option": 0})
		req, rec := newAuthRequest(http.MethodPatch, answersPath, getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "this question does not belong to the test"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("submit returns the result", func(t *testing.T) {
		// q1 answered correctly, q2 wrong: 1 of 2 points
		req, rec := newAuthRequest(http.MethodPost, submitPath, getToken(t, f.student))
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, session.Result{Percentage: 50, Passed: true, RawScore: 1, MaxScore: 2}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("resubmission returns the same result", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, submitPath, getToken(t, f.student))
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: marchallObj(t, session.Result{Percentage: 50, Passed: true, RawScore: 1, MaxScore: 2}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("answers after submission conflict", func(t *testing.T) {
		body := marchallObj(t, echoMap{"question_id": f.q1.ID, "selected_option": 0})
		req, rec := newAuthRequest(http.MethodPatch, answersPath, getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "this attempt has already been submitted"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("the used link conflicts on restart", func(t *testing.T) {
		body := marchallObj(t, echoMap{"link_id": link.ID})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attempts", getToken(t, f.student), body)
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "this test link has already been used"}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func TestSessionAPI_retrieveAttempt(t *testing.T) {
	f := sessionSetup(t)

	link := f.openLink(t)
	att := f.startAttempt(t, link)
	path := "/v1/attempts/" + att.ID

	t.Run("owner reads their attempt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, f.student))
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("another student is forbidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, f.other))
		f.app.ServeHTTP(rec, req)

		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "this attempt belongs to another user"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("a teacher reads any attempt", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, f.teacher))
		f.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
