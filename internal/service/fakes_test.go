package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"

	"github.com/pubshark/backend/internal/auth"
	"github.com/pubshark/backend/internal/mailer"
	"github.com/pubshark/backend/internal/models"
	"github.com/pubshark/backend/internal/store"
)

// mem is an in-memory stand-in for the gorm stores. Each repository is a
// thin view over the same state so cross-table effects stay visible.
type mem struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*models.User
	articles  map[uuid.UUID]*models.Article
	likes     map[uuid.UUID][]uuid.UUID
	comments  map[uuid.UUID]*models.Comment
	reactions map[uuid.UUID]map[uuid.UUID]models.ReactionKind
	notifs    map[uuid.UUID]*models.Notification
	receipts  map[uuid.UUID]map[uuid.UUID]time.Time
	cursors   map[uuid.UUID]time.Time
	subs      map[string]*models.Subscription
	failNext  error
}

func newMem() *mem {
	return &mem{
		users:     map[uuid.UUID]*models.User{},
		articles:  map[uuid.UUID]*models.Article{},
		likes:     map[uuid.UUID][]uuid.UUID{},
		comments:  map[uuid.UUID]*models.Comment{},
		reactions: map[uuid.UUID]map[uuid.UUID]models.ReactionKind{},
		notifs:    map[uuid.UUID]*models.Notification{},
		receipts:  map[uuid.UUID]map[uuid.UUID]time.Time{},
		cursors:   map[uuid.UUID]time.Time{},
		subs:      map[string]*models.Subscription{},
	}
}

func (m *mem) fail() error {
	err := m.failNext
	m.failNext = nil
	return err
}

type memUsers struct{ *mem }

func (r memUsers) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return store.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r memUsers) List(_ context.Context, page store.Page) ([]models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	total := int64(len(out))
	return window(out, page), total, nil
}

func (r memUsers) UpdateRole(_ context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

type memArticles struct{ *mem }

func (r memArticles) Create(_ context.Context, a *models.Article) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(); err != nil {
		return err
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC().Add(time.Duration(len(r.articles)) * time.Millisecond)
	a.UpdatedAt = a.CreatedAt
	if u, ok := r.users[a.AuthorID]; ok {
		a.Author = *u
	}
	cp := *a
	r.articles[a.ID] = &cp
	return nil
}

func (r memArticles) Get(_ context.Context, id uuid.UUID) (*models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r memArticles) get(id uuid.UUID) (*models.Article, error) {
	a, ok := r.articles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	cp.Likes = slices.Clone(r.likes[id])
	if u, ok := r.users[a.AuthorID]; ok {
		cp.Author = *u
	}
	return &cp, nil
}

func (r memArticles) List(_ context.Context, f store.ArticleFilter) ([]models.Article, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Article
	for id, a := range r.articles {
		switch {
		case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status),
			f.AuthorID != nil && *f.AuthorID != a.AuthorID,
			f.Category != "" && f.Category != a.Category,
			f.College != "" && f.College != a.College,
			f.Search != "" && !strings.Contains(strings.ToLower(a.Title), strings.ToLower(f.Search)):
			continue
		}
		cp, _ := r.get(id)
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	return window(out, f.Page), total, nil
}

func (r memArticles) Update(_ context.Context, id uuid.UUID, fields map[string]any) (*models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(fields, "status")
	applyFields(a, fields)
	return r.get(id)
}

func (r memArticles) Transition(_ context.Context, id uuid.UUID, t store.Transition) (*models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !slices.Contains(t.From, a.Status) {
		return nil, store.ErrStale
	}
	a.Status = t.To
	applyFields(a, t.Fields)
	if t.Notification != nil {
		exists := false
		for _, n := range r.notifs {
			exists = exists || n.ArticleID == id
		}
		if !exists {
			n := *t.Notification
			n.ID = uuid.New()
			n.ArticleID = id
			r.notifs[n.ID] = &n
		}
	}
	return r.get(id)
}

func (r memArticles) IncrementViews(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.articles[id]; ok {
		a.Views++
	}
	return nil
}

func (r memArticles) ToggleLike(_ context.Context, articleID, userID uuid.UUID) (*store.LikeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.articles[articleID]
	if !ok || a.Status != models.StatusPublished {
		return nil, store.ErrNotFound
	}
	likes := r.likes[articleID]
	res := &store.LikeResult{}
	if i := slices.Index(likes, userID); i >= 0 {
		likes = slices.Delete(likes, i, i+1)
	} else {
		likes = append(likes, userID)
		res.Liked = true
	}
	r.likes[articleID] = likes
	a.LikeCount = len(likes)
	res.Likes = append([]uuid.UUID{}, likes...)
	res.LikeCount = len(likes)
	return res, nil
}

func (r memArticles) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.articles[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.articles, id)
	delete(r.likes, id)
	for cid, c := range r.comments {
		if c.PostID == id {
			delete(r.comments, cid)
			delete(r.reactions, cid)
		}
	}
	for nid, n := range r.notifs {
		if n.ArticleID == id {
			delete(r.notifs, nid)
			delete(r.receipts, nid)
		}
	}
	return nil
}

func applyFields(a *models.Article, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "title":
			a.Title = v.(string)
		case "description":
			a.Description = v.(string)
		case "cover_img":
			a.CoverImg = v.(string)
		case "college":
			a.College = v.(string)
		case "category":
			a.Category = v.(string)
		case "content":
			a.Content = v.(datatypes.JSON)
		case "revision_message":
			a.RevisionMessage = v.(string)
		case "rejection_message":
			a.RejectionMessage = v.(string)
		case "revision_date":
			t := v.(time.Time)
			a.RevisionDate = &t
		case "rejection_date":
			t := v.(time.Time)
			a.RejectionDate = &t
		case "published_at":
			t := v.(time.Time)
			a.PublishedAt = &t
		case "reviewed_by":
			id := v.(uuid.UUID)
			a.ReviewedBy = &id
		default:
			panic("unexpected article column " + k)
		}
	}
}

type memComments struct{ *mem }

func (r memComments) Create(_ context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC().Add(time.Duration(len(r.comments)) * time.Millisecond)
	cp := *c
	r.comments[c.ID] = &cp
	return nil
}

func (r memComments) Get(_ context.Context, id uuid.UUID) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r memComments) get(id uuid.UUID) (*models.Comment, error) {
	c, ok := r.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	cp.Likes, cp.Dislikes = []uuid.UUID{}, []uuid.UUID{}
	for uid, kind := range r.reactions[id] {
		if kind == models.ReactionLike {
			cp.Likes = append(cp.Likes, uid)
		} else {
			cp.Dislikes = append(cp.Dislikes, uid)
		}
	}
	return &cp, nil
}

func (r memComments) ListByArticle(_ context.Context, articleID uuid.UUID, page store.Page) ([]models.Comment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Comment
	for id, c := range r.comments {
		if c.PostID == articleID {
			cp, _ := r.get(id)
			out = append(out, *cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	return window(out, page), total, nil
}

func (r memComments) UpdateText(_ context.Context, id uuid.UUID, text string, editedAt time.Time) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.Comment = text
	c.IsEdited = true
	c.EditedAt = &editedAt
	return r.get(id)
}

func (r memComments) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.comments, id)
	delete(r.reactions, id)
	return nil
}

func (r memComments) React(_ context.Context, commentID, userID uuid.UUID, kind models.ReactionKind) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[commentID]; !ok {
		return nil, store.ErrNotFound
	}
	set := r.reactions[commentID]
	if set == nil {
		set = map[uuid.UUID]models.ReactionKind{}
		r.reactions[commentID] = set
	}
	if set[userID] == kind {
		delete(set, userID)
	} else {
		set[userID] = kind
	}
	return r.get(commentID)
}

type memNotifications struct{ *mem }

func (r memNotifications) Latest(_ context.Context, now time.Time, limit int) ([]models.FeedItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FeedItem
	for _, n := range r.notifs {
		if !n.ExpiresAt.After(now) {
			continue
		}
		a := r.articles[n.ArticleID]
		item := models.FeedItem{ID: n.ID, Type: n.Type, ArticleID: n.ArticleID, CreatedAt: n.CreatedAt, ExpiresAt: n.ExpiresAt}
		if a != nil {
			item.Title, item.CoverImg, item.College = a.Title, a.CoverImg, a.College
			if u := r.users[a.AuthorID]; u != nil {
				item.AuthorUsername = u.Username
			}
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memNotifications) Get(_ context.Context, id uuid.UUID) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r memNotifications) ReadSet(_ context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		if _, ok := r.receipts[id][userID]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r memNotifications) MarkRead(_ context.Context, notificationID, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.receipts[notificationID] == nil {
		r.receipts[notificationID] = map[uuid.UUID]time.Time{}
	}
	if _, ok := r.receipts[notificationID][userID]; !ok {
		r.receipts[notificationID][userID] = at
	}
	return nil
}

func (r memNotifications) ClearedAt(_ context.Context, userID uuid.UUID) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursors[userID], nil
}

func (r memNotifications) SetClearedAt(_ context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[userID] = at
	return nil
}

func (r memNotifications) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.notifs))
	r.notifs = map[uuid.UUID]*models.Notification{}
	r.receipts = map[uuid.UUID]map[uuid.UUID]time.Time{}
	return n, nil
}

func (r memNotifications) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, notif := range r.notifs {
		if !notif.ExpiresAt.After(now) {
			delete(r.notifs, id)
			delete(r.receipts, id)
			n++
		}
	}
	return n, nil
}

type memSubscriptions struct{ *mem }

func (r memSubscriptions) FindByEmail(_ context.Context, email string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r memSubscriptions) SavePending(_ context.Context, email, token string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[email]
	if !ok {
		s = &models.Subscription{ID: uuid.New(), Email: email}
		r.subs[email] = s
	}
	if !s.Confirmed {
		s.ConfirmationToken = token
	}
	cp := *s
	return &cp, nil
}

func (r memSubscriptions) Confirm(_ context.Context, email, token string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[email]
	if !ok || s.ConfirmationToken == "" || s.ConfirmationToken != token {
		return false, nil
	}
	s.Confirmed = true
	s.ConfirmationToken = ""
	s.ConfirmedAt = &at
	return true, nil
}

func (r memSubscriptions) ConfirmedEmails(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for email, s := range r.subs {
		if s.Confirmed {
			out = append(out, email)
		}
	}
	sort.Strings(out)
	return out, nil
}

func window[T any](items []T, page store.Page) []T {
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	return items[start:min(start+page.Size, len(items))]
}

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) to() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.sent))
	for i, m := range o.sent {
		out[i] = m.To
	}
	return out
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time           { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type env struct {
	svc    *Service
	mem    *mem
	mail   *outbox
	clock  *clock
	ctx    context.Context
	admin  *models.User
	writer *models.User
	reader *models.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	m := newMem()
	e := &env{
		mem:   m,
		mail:  &outbox{},
		clock: &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		ctx:   context.Background(),
	}
	e.svc = New(Deps{
		Users:         memUsers{m},
		Articles:      memArticles{m},
		Comments:      memComments{m},
		Notifications: memNotifications{m},
		Subscriptions: memSubscriptions{m},
		Mailer:        e.mail,
		Tokens:        auth.NewTokens("test-secret", time.Hour),
		Log:           zaptest.NewLogger(t),
		PublicURL:     "https://pubshark.test",
		Now:           e.clock.now,
		Async:         func(f func()) { f() },
	})
	e.admin = e.user(t, "admin", models.RoleAdmin)
	e.writer = e.user(t, "writer", models.RoleWriter)
	e.reader = e.user(t, "reader", models.RoleUser)
	return e
}

func (e *env) user(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@uni.edu", Password: "x", Role: role}
	require.NoError(t, memUsers{e.mem}.Create(e.ctx, u))
	return u
}

func (e *env) submit(t *testing.T, title string) *models.Article {
	t.Helper()
	a, err := e.svc.Articles.Submit(e.ctx, e.writer, SubmitArticleInput{
		Title:    title,
		Content:  []byte(`{"blocks":[{"text":"hello"}]}`),
		CoverImg: "https://img.test/c.png",
		College:  "Engineering",
		Category: "Research",
	})
	require.NoError(t, err)
	return a
}

func (e *env) publish(t *testing.T, id uuid.UUID) *models.Article {
	t.Helper()
	a, err := e.svc.Articles.Review(e.ctx, e.admin, id, "published", "")
	require.NoError(t, err)
	return a
}

var errBoom = errors.New("boom")
