package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mtihani/core"
	"github.com/trezcool/mtihani/core/user"
	emailsvc "github.com/trezcool/mtihani/services/email"
	dummydb "github.com/trezcool/mtihani/storage/database/dummy"
	testutil "github.com/trezcool/mtihani/tests"
)

func setup(t *testing.T) (user.Repository, user.ServiceInterface, *validator.Validate) {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := testutil.NewConfig()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ClearSentMessages()

	repo := dummydb.NewUserRepository(db)
	svc := user.NewService(repo, mailSvc, conf)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.RegisterCustomValidators(validate, translator)
	return repo, svc, validate
}

func TestUser_password(t *testing.T) {
	var usr user.User
	require.NoError(t, usr.SetPassword("s3cret"))

	assert.NoError(t, usr.CheckPassword("s3cret"))
	assert.Error(t, usr.CheckPassword("wrong"))
}

func TestUser_roles(t *testing.T) {
	usr := user.User{Roles: []string{user.RoleStudent, user.RoleTeacher}}

	assert.True(t, usr.IsStudent())
	assert.True(t, usr.IsTeacher())
	assert.False(t, usr.IsAdmin())
}

func TestNewUser_Validate(t *testing.T) {
	repo, svc, validate := setup(t)
	ctx := context.Background()

	testutil.CreateUser(t, repo, "Existing", "taken@test.cd", "", nil, true)

	valid := func() user.NewUser {
		return user.NewUser{
			Name:            "Amani",
			Email:           "amani@test.cd",
			Password:        "s3cret",
			PasswordConfirm: "s3cret",
		}
	}

	tests := []struct {
		name    string
		mod     func(nu *user.NewUser)
		wantErr bool
	}{
		{name: "valid", mod: func(nu *user.NewUser) {}},
		{name: "valid with roles", mod: func(nu *user.NewUser) { nu.Roles = []string{user.RoleTeacher} }},
		{name: "bad email", mod: func(nu *user.NewUser) { nu.Email = "nope" }, wantErr: true},
		{name: "password mismatch", mod: func(nu *user.NewUser) { nu.PasswordConfirm = "other" }, wantErr: true},
		{name: "unknown role", mod: func(nu *user.NewUser) { nu.Roles = []string{"boss"} }, wantErr: true},
		{name: "email taken", mod: func(nu *user.NewUser) { nu.Email = "taken@test.cd" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.mod(&nu)
			err := nu.Validate(ctx, validate, svc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_service_Create(t *testing.T) {
	_, svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, user.NewUser{
		Name:            "Amani",
		Email:           "amani@test.cd",
		Password:        "s3cret",
		PasswordConfirm: "s3cret",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
	assert.NoError(t, usr.CheckPassword("s3cret"))

	// welcome email
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Equal(t, usr.Email, emailsvc.SentMessages[0].To[0].Address)

	got, err := svc.GetByEmail(ctx, "Amani@test.cd")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)
}
