package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pubshark/backend/internal/apperr"
	"github.com/pubshark/backend/internal/models"
)

func assertKind(t *testing.T, want apperr.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, apperr.KindOf(err), err.Error())
}

func TestModerationLifecycle(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Newsletter.Subscribe(e.ctx, "fan@uni.edu")
	require.NoError(t, err)
	sub := e.mem.subs["fan@uni.edu"]
	require.NoError(t, e.svc.Newsletter.Confirm(e.ctx, "fan@uni.edu", sub.ConfirmationToken))
	e.mail.sent = nil

	a := e.submit(t, "Campus solar farm")
	assert.Equal(t, models.StatusPending, a.Status)

	a, err = e.svc.Articles.Review(e.ctx, e.admin, a.ID, "rejected", "needs sources")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, a.Status)
	assert.Equal(t, "needs sources", a.RejectionMessage)
	require.NotNil(t, a.RejectionDate)

	title := "Campus solar farm, with sources"
	a, err = e.svc.Articles.Resubmit(e.ctx, e.writer, a.ID, &ArticleEdits{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, a.Status)
	assert.Empty(t, a.RejectionMessage)
	assert.Equal(t, title, a.Title)

	a = e.publish(t, a.ID)
	assert.Equal(t, models.StatusPublished, a.Status)
	require.NotNil(t, a.PublishedAt)
	require.NotNil(t, a.ReviewedBy)
	assert.Equal(t, e.admin.ID, *a.ReviewedBy)

	feed, err := e.svc.Notifications.List(e.ctx, e.reader, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, a.ID, feed[0].ArticleID)
	assert.Equal(t, title, feed[0].Title)
	assert.Equal(t, "writer", feed[0].AuthorUsername)
	assert.Equal(t, e.clock.now().Add(7*24*time.Hour), feed[0].ExpiresAt)
	assert.False(t, feed[0].Read)

	assert.Equal(t, []string{"fan@uni.edu"}, e.mail.to())
	assert.Contains(t, e.mail.sent[0].Subject, title)

	_, err = e.svc.Articles.Review(e.ctx, e.admin, a.ID, "rejected", "too late")
	assertKind(t, apperr.KindInvalidTransition, err)
}

func TestReviewGuards(t *testing.T) {
	e := newEnv(t)
	a := e.submit(t, "Guarded")

	_, err := e.svc.Articles.Review(e.ctx, nil, a.ID, "published", "")
	assertKind(t, apperr.KindAuthentication, err)

	_, err = e.svc.Articles.Review(e.ctx, e.writer, a.ID, "published", "")
	assertKind(t, apperr.KindAuthorization, err)

	_, err = e.svc.Articles.Review(e.ctx, e.admin, a.ID, "pending", "")
	assertKind(t, apperr.KindInvalidTransition, err)

	_, err = e.svc.Articles.Review(e.ctx, e.admin, a.ID, "archived", "")
	assertKind(t, apperr.KindInvalidTransition, err)

	_, err = e.svc.Articles.Review(e.ctx, e.admin, a.ID, "revision", "   ")
	assertKind(t, apperr.KindValidation, err)

	_, err = e.svc.Articles.Review(e.ctx, e.admin, uuid.New(), "published", "")
	assertKind(t, apperr.KindNotFound, err)

	a, err = e.svc.Articles.Review(e.ctx, e.admin, a.ID, "revision", "tighten the intro")
	require.NoError(t, err)
	assert.Equal(t, "tighten the intro", a.RevisionMessage)

	_, err = e.svc.Articles.Review(e.ctx, e.admin, a.ID, "published", "")
	assertKind(t, apperr.KindInvalidTransition, err)
	assert.Empty(t, e.mem.notifs)
}

func TestResubmitOwnership(t *testing.T) {
	e := newEnv(t)
	a := e.submit(t, "Mine")

	_, err := e.svc.Articles.Resubmit(e.ctx, e.writer, a.ID, nil)
	assertKind(t, apperr.KindInvalidTransition, err)

	_, err = e.svc.Articles.Review(e.ctx, e.admin, a.ID, "rejected", "no")
	require.NoError(t, err)

	other := e.user(t, "other", models.RoleWriter)
	_, err = e.svc.Articles.Resubmit(e.ctx, other, a.ID, nil)
	assertKind(t, apperr.KindAuthorization, err)

	_, err = e.svc.Articles.Resubmit(e.ctx, e.admin, a.ID, nil)
	assertKind(t, apperr.KindAuthorization, err)

	blank := " "
	_, err = e.svc.Articles.Resubmit(e.ctx, e.writer, a.ID, &ArticleEdits{Title: &blank})
	assertKind(t, apperr.KindValidation, err)

	_, err = e.svc.Articles.Resubmit(e.ctx, e.writer, a.ID, nil)
	require.NoError(t, err)
}

func TestSubmitValidation(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Articles.Submit(e.ctx, e.reader, SubmitArticleInput{})
	assertKind(t, apperr.KindAuthorization, err)

	_, err = e.svc.Articles.Submit(e.ctx, e.writer, SubmitArticleInput{Title: "x"})
	assertKind(t, apperr.KindValidation, err)
	assert.Contains(t, err.Error(), "content")

	_, err = e.svc.Articles.Submit(e.ctx, e.writer, SubmitArticleInput{
		Title: "x", Content: []byte(`"  "`), CoverImg: "c", College: "c", Category: "c",
	})
	assertKind(t, apperr.KindValidation, err)

	e.mem.failNext = errBoom
	_, err = e.svc.Articles.Submit(e.ctx, e.writer, SubmitArticleInput{
		Title: "x", Content: []byte(`{"a":1}`), CoverImg: "c", College: "c", Category: "c",
	})
	assertKind(t, apperr.KindDependency, err)
	assert.ErrorIs(t, err, errBoom)
}

func TestListVisibility(t *testing.T) {
	e := newEnv(t)
	pending := e.submit(t, "Pending piece")
	published := e.publish(t, e.submit(t, "Published piece").ID)

	page, err := e.svc.Articles.List(e.ctx, nil, ListQuery{})
	require.NoError(t, err)
	require.Len(t, page.Articles, 1)
	assert.Equal(t, published.ID, page.Articles[0].ID)

	page, err = e.svc.Articles.List(e.ctx, e.reader, ListQuery{Status: "pending"})
	require.NoError(t, err)
	assert.Empty(t, page.Articles)

	page, err = e.svc.Articles.List(e.ctx, e.admin, ListQuery{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, page.Articles, 1)
	assert.Equal(t, pending.ID, page.Articles[0].ID)

	page, err = e.svc.Articles.List(e.ctx, e.writer, ListQuery{Author: e.writer.ID.String()})
	require.NoError(t, err)
	assert.Len(t, page.Articles, 2)

	page, err = e.svc.Articles.List(e.ctx, e.admin, ListQuery{Status: "bogus"})
	require.NoError(t, err)
	assert.Empty(t, page.Articles)
	assert.NotNil(t, page.Articles)

	page, err = e.svc.Articles.List(e.ctx, e.admin, ListQuery{Author: "not-a-uuid"})
	require.NoError(t, err)
	assert.Empty(t, page.Articles)

	page, err = e.svc.Articles.List(e.ctx, nil, ListQuery{Page: -4, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.CurrentPage)
	assert.EqualValues(t, 1, page.Total)
}

func TestGetHidesUnpublished(t *testing.T) {
	e := newEnv(t)
	a := e.submit(t, "Draft")

	_, err := e.svc.Articles.Get(e.ctx, e.reader, a.ID)
	assertKind(t, apperr.KindNotFound, err)

	d, err := e.svc.Articles.Get(e.ctx, e.writer, a.ID)
	require.NoError(t, err)
	assert.Zero(t, d.Article.Views)

	e.publish(t, a.ID)
	d, err = e.svc.Articles.Get(e.ctx, nil, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Article.Views)
	assert.NotNil(t, d.Comments)
}

func TestToggleLike(t *testing.T) {
	e := newEnv(t)
	a := e.submit(t, "Likeable")

	_, err := e.svc.Articles.ToggleLike(e.ctx, e.reader, a.ID)
	assertKind(t, apperr.KindNotFound, err)
	_, err = e.svc.Articles.ToggleLike(e.ctx, e.admin, a.ID)
	assertKind(t, apperr.KindNotFound, err)
	e.publish(t, a.ID)

	st, err := e.svc.Articles.ToggleLike(e.ctx, e.reader, a.ID)
	require.NoError(t, err)
	assert.True(t, st.Liked)
	assert.Equal(t, 1, st.LikeCount)
	assert.Equal(t, []uuid.UUID{e.reader.ID}, st.Likes)

	st, err = e.svc.Articles.ToggleLike(e.ctx, e.writer, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.LikeCount)

	st, err = e.svc.Articles.ToggleLike(e.ctx, e.reader, a.ID)
	require.NoError(t, err)
	assert.False(t, st.Liked)
	assert.Equal(t, []uuid.UUID{e.writer.ID}, st.Likes)
	assert.Equal(t, len(st.Likes), st.LikeCount)

	_, err = e.svc.Articles.ToggleLike(e.ctx, nil, a.ID)
	assertKind(t, apperr.KindAuthentication, err)

	_, err = e.svc.Articles.ToggleLike(e.ctx, e.reader, uuid.New())
	assertKind(t, apperr.KindNotFound, err)
}

func TestEditAndDeleteAreAdminOnly(t *testing.T) {
	e := newEnv(t)
	a := e.publish(t, e.submit(t, "Old title").ID)
	title := "New title"

	_, err := e.svc.Articles.Edit(e.ctx, e.writer, a.ID, ArticleEdits{Title: &title})
	assertKind(t, apperr.KindAuthorization, err)

	edited, err := e.svc.Articles.Edit(e.ctx, e.admin, a.ID, ArticleEdits{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, edited.Title)
	assert.Equal(t, models.StatusPublished, edited.Status)

	assertKind(t, apperr.KindAuthorization, e.svc.Articles.Delete(e.ctx, e.writer, a.ID))
	require.NoError(t, e.svc.Articles.Delete(e.ctx, e.admin, a.ID))
	assertKind(t, apperr.KindNotFound, e.svc.Articles.Delete(e.ctx, e.admin, a.ID))
	assert.Empty(t, e.mem.notifs)
}

func TestAnnounceRunsDetached(t *testing.T) {
	e := newEnv(t)
	var announced context.Context
	e.svc.Articles.announcer = announcerFunc(func(ctx context.Context, _ *models.Article) { announced = ctx })

	ctx, cancel := context.WithCancel(e.ctx)
	a := e.submit(t, "Detached")
	_, err := e.svc.Articles.Review(ctx, e.admin, a.ID, "published", "")
	require.NoError(t, err)
	cancel()

	require.NotNil(t, announced)
	assert.NoError(t, announced.Err())
}

type announcerFunc func(ctx context.Context, a *models.Article)

func (f announcerFunc) Announce(ctx context.Context, a *models.Article) { f(ctx, a) }
