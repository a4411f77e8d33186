package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/models"
)

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)

	res, err := e.svc.Accounts.Register(e.ctx, RegisterInput{Username: "newbie", Email: "NewBie@uni.edu", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, models.RoleUser, res.User.Role)
	assert.Equal(t, "newbie@uni.edu", res.User.Email)
	assert.NotEqual(t, "secret1", res.User.Password)

	_, err = e.svc.Accounts.Register(e.ctx, RegisterInput{Username: "newbie", Email: "newbie@uni.edu", Password: "secret1"})
	assertKind(t, apperr.KindConflict, err)

	_, err = e.svc.Accounts.Register(e.ctx, RegisterInput{Username: "x", Email: "bad", Password: "1"})
	assertKind(t, apperr.KindValidation, err)

	logged, err := e.svc.Accounts.Login(e.ctx, "newbie@uni.edu", "secret1")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, logged.User.ID)

	_, err = e.svc.Accounts.Login(e.ctx, "newbie@uni.edu", "wrong")
	assertKind(t, apperr.KindAuthentication, err)
	_, err = e.svc.Accounts.Login(e.ctx, "ghost@uni.edu", "secret1")
	assertKind(t, apperr.KindAuthentication, err)
}

func TestSetRole(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Accounts.SetRole(e.ctx, e.writer, e.reader.ID, "writer")
	assertKind(t, apperr.KindAuthorization, err)

	_, err = e.svc.Accounts.SetRole(e.ctx, e.admin, e.reader.ID, "editor")
	assertKind(t, apperr.KindValidation, err)

	_, err = e.svc.Accounts.SetRole(e.ctx, e.admin, e.admin.ID, "user")
	assertKind(t, apperr.KindValidation, err)

	u, err := e.svc.Accounts.SetRole(e.ctx, e.admin, e.reader.ID, "writer")
	require.NoError(t, err)
	assert.Equal(t, models.RoleWriter, u.Role)

	page, err := e.svc.Accounts.List(e.ctx, e.admin, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Users, 2)
	assert.EqualValues(t, 3, page.Pagination.TotalCount)
	assert.True(t, page.Pagination.HasNext)

	_, err = e.svc.Accounts.List(e.ctx, e.reader, 1, 10)
	assertKind(t, apperr.KindAuthorization, err)
}

func TestEnsureAdmin(t *testing.T) {
	e := newEnv(t)

	u, err := e.svc.Accounts.EnsureAdmin(e.ctx, "root", "root@uni.edu", "rootpass")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)

	again, err := e.svc.Accounts.EnsureAdmin(e.ctx, "root", "root@uni.edu", "rootpass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	promoted, err := e.svc.Accounts.EnsureAdmin(e.ctx, "writer", "writer@uni.edu", "ignored")
	require.NoError(t, err)
	assert.Equal(t, e.writer.ID, promoted.ID)
	assert.Equal(t, models.RoleAdmin, promoted.Role)
}
