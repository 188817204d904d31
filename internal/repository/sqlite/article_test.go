package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

func ptr[T any](v T) *T { return &v }

func headers(articles []model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.Header
	}
	return out
}

// =========================================================================
// CREATE / GET
// =========================================================================

func TestCreateArticle(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "Ada", "ada@example.com")

	content := "body"
	a := &model.Article{
		Header:   "Hello",
		Content:  &content,
		Tags:     []string{"go", "db"},
		Access:   model.AccessRestricted,
		Active:   true,
		AuthorID: author.ID,
	}
	require.NoError(t, db.Create(context.Background(), a))

	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)
	assert.Equal(t, "Ada", a.AuthorName, "author name is denormalized on create")

	got, err := db.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestCreateArticle_DefaultsToPublic(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "Ada", "ada@example.com")

	a := &model.Article{Header: "x", Active: true, AuthorID: author.ID}
	require.NoError(t, db.Create(context.Background(), a))

	assert.Equal(t, model.AccessPublic, a.Access)
	assert.Nil(t, a.Content)
	assert.Nil(t, a.Tags)
}

func TestCreateArticle_AlwaysActive(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "Ada", "ada@example.com")

	a := &model.Article{Header: "x", Active: false, AuthorID: author.ID}
	require.NoError(t, db.Create(context.Background(), a))
	assert.True(t, a.Active)

	got, err := db.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, got.Active, "stored active regardless of the input")
}

func TestCreateArticle_UnknownAuthor(t *testing.T) {
	db := newTestDB(t)

	err := db.Create(context.Background(), &model.Article{Header: "x", AuthorID: "nobody"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestGetArticle_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdateArticle(t *testing.T) {
	db := newTestDB(t)
	withClock(db, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	author := createTestUser(t, db, "Ada", "ada@example.com")
	original := createTestArticle(t, db, author, "Original", model.AccessPublic, "go")

	updated, err := db.Update(context.Background(), original.ID, repository.ArticleUpdate{
		Header: model.Some("Renamed"),
		Active: model.Some(false),
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Header)
	assert.False(t, updated.Active, "false is applied, not treated as absent")
	assert.Equal(t, []string{"go"}, updated.Tags, "unspecified fields are unchanged")
	assert.Equal(t, original.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(original.UpdatedAt))

	got, err := db.GetByID(context.Background(), original.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestUpdateArticle_ContentNullClears(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "Ada", "ada@example.com")
	content := "text"
	a := &model.Article{Header: "x", Content: &content, Active: true, AuthorID: author.ID}
	require.NoError(t, db.Create(context.Background(), a))

	updated, err := db.Update(context.Background(), a.ID, repository.ArticleUpdate{
		Content: model.Null[string](),
		Tags:    model.Some([]string{}),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Content)
	assert.Nil(t, updated.Tags)
}

func TestUpdateArticle_EmptyUpdateIsNoop(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "Ada", "ada@example.com")
	a := createTestArticle(t, db, author, "x", model.AccessPublic)

	updated, err := db.Update(context.Background(), a.ID, repository.ArticleUpdate{})
	require.NoError(t, err)
	assert.Equal(t, a, updated)
}

func TestUpdateArticle_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Update(context.Background(), "missing", repository.ArticleUpdate{Header: model.Some("x")})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// DELETE
// =========================================================================

func TestDeleteArticle_Idempotent(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "Ada", "ada@example.com")
	a := createTestArticle(t, db, author, "x", model.AccessPublic)

	res, err := db.Delete(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, res.ID)

	_, err = db.GetByID(context.Background(), a.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	res, err = db.Delete(context.Background(), a.ID)
	require.NoError(t, err, "second delete is not an error")
	assert.Equal(t, a.ID, res.ID)
}

// =========================================================================
// SEARCH
// =========================================================================

// visibilityFixture creates PUB, RES and PRIV, all by author, plus a second
// user other.
func visibilityFixture(t *testing.T) (*DB, *model.User, *model.User) {
	t.Helper()
	db := newTestDB(t)
	withClock(db, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	author := createTestUser(t, db, "Ada", "ada@example.com")
	other := createTestUser(t, db, "Bob", "bob@example.com")

	createTestArticle(t, db, author, "PUB", model.AccessPublic)
	createTestArticle(t, db, author, "RES", model.AccessRestricted)
	createTestArticle(t, db, author, "PRIV", model.AccessPrivate)

	return db, author, other
}

func TestSearch_Visibility(t *testing.T) {
	db, author, other := visibilityFixture(t)

	tests := []struct {
		name   string
		filter repository.ArticleFilter
		want   []string
	}{
		{
			name:   "anonymous sees only public",
			filter: repository.ArticleFilter{},
			want:   []string{"PUB"},
		},
		{
			name:   "anonymous asking for private still gets public",
			filter: repository.ArticleFilter{Access: ptr(model.AccessPrivate)},
			want:   []string{"PUB"},
		},
		{
			name:   "other user sees public and restricted",
			filter: repository.ArticleFilter{RequesterID: &other.ID},
			want:   []string{"PUB", "RES"},
		},
		{
			name:   "author sees everything",
			filter: repository.ArticleFilter{RequesterID: &author.ID},
			want:   []string{"PUB", "RES", "PRIV"},
		},
		{
			name:   "author narrowing to private",
			filter: repository.ArticleFilter{RequesterID: &author.ID, Access: ptr(model.AccessPrivate)},
			want:   []string{"PRIV"},
		},
		{
			name:   "other user narrowing to private gets nothing",
			filter: repository.ArticleFilter{RequesterID: &other.ID, Access: ptr(model.AccessPrivate)},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Search(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, headers(got))
		})
	}
}

func TestSearch_Filters(t *testing.T) {
	db := newTestDB(t)
	withClock(db, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	author := createTestUser(t, db, "Ada", "ada@example.com")

	createTestArticle(t, db, author, "Go Concurrency", model.AccessPublic, "go", "concurrency")
	createTestArticle(t, db, author, "Postgres tips", model.AccessPublic, "db")
	createTestArticle(t, db, author, "100% coverage", model.AccessPublic, "testing", "go")
	inactive := createTestArticle(t, db, author, "Draft", model.AccessPublic)
	_, err := db.Update(context.Background(), inactive.ID, repository.ArticleUpdate{Active: model.Some(false)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter repository.ArticleFilter
		want   []string
	}{
		{"tag overlap, any of", repository.ArticleFilter{Tags: []string{"db", "testing"}}, []string{"Postgres tips", "100% coverage"}},
		{"tag overlap is exact per tag", repository.ArticleFilter{Tags: []string{"Go"}}, []string{}},
		{"empty tag list is no filter", repository.ArticleFilter{Tags: []string{}}, []string{"Go Concurrency", "Postgres tips", "100% coverage", "Draft"}},
		{"header is case-insensitive substring", repository.ArticleFilter{Header: ptr("CONCUR")}, []string{"Go Concurrency"}},
		{"percent in header matches literally", repository.ArticleFilter{Header: ptr("0%")}, []string{"100% coverage"}},
		{"active false", repository.ArticleFilter{Active: ptr(false)}, []string{"Draft"}},
		{"active true", repository.ArticleFilter{Active: ptr(true)}, []string{"Go Concurrency", "Postgres tips", "100% coverage"}},
		{"limit", repository.ArticleFilter{Limit: 2}, []string{"Go Concurrency", "Postgres tips"}},
		{"offset", repository.ArticleFilter{Limit: 2, Offset: 2}, []string{"100% coverage", "Draft"}},
		{"combined", repository.ArticleFilter{Tags: []string{"go"}, Header: ptr("coverage")}, []string{"100% coverage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Search(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, headers(got))
		})
	}
}

func TestSearch_DateBounds(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	withClock(db, start)
	author := createTestUser(t, db, "Ada", "ada@example.com") // t+1s

	first := createTestArticle(t, db, author, "first", model.AccessPublic)   // t+2s
	second := createTestArticle(t, db, author, "second", model.AccessPublic) // t+3s
	createTestArticle(t, db, author, "third", model.AccessPublic)            // t+4s

	tests := []struct {
		name   string
		filter repository.ArticleFilter
		want   []string
	}{
		{"from only runs to now", repository.ArticleFilter{CreatedAtFrom: &second.CreatedAt}, []string{"second", "third"}},
		{"to only starts at epoch", repository.ArticleFilter{CreatedAtTo: &second.CreatedAt}, []string{"first", "second"}},
		{"both bounds inclusive", repository.ArticleFilter{CreatedAtFrom: &first.CreatedAt, CreatedAtTo: &first.CreatedAt}, []string{"first"}},
		{"window before everything", repository.ArticleFilter{CreatedAtTo: ptr(start)}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Search(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, headers(got))
		})
	}
}

func TestSearch_StableOrder(t *testing.T) {
	db := newTestDB(t)
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return frozen }
	author := createTestUser(t, db, "Ada", "ada@example.com")

	for _, h := range []string{"a", "b", "c", "d"} {
		createTestArticle(t, db, author, h, model.AccessPublic)
	}

	first, err := db.Search(context.Background(), repository.ArticleFilter{})
	require.NoError(t, err)
	second, err := db.Search(context.Background(), repository.ArticleFilter{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, headers(first), "same timestamp falls back to insertion order")
	assert.Equal(t, first, second)
}

func TestSearch_HeaderFoldsNonASCII(t *testing.T) {
	db := newTestDB(t)
	withClock(db, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	author := createTestUser(t, db, "Ada", "ada@example.com")

	createTestArticle(t, db, author, "Über Café", model.AccessPublic)
	createTestArticle(t, db, author, "ПРИВЕТ мир", model.AccessPublic)
	createTestArticle(t, db, author, "Керриган", model.AccessPublic)

	tests := []struct {
		header string
		want   []string
	}{
		{"über", []string{"Über Café"}},
		{"CAFÉ", []string{"Über Café"}},
		{"привет", []string{"ПРИВЕТ мир"}},
		{"МИР", []string{"ПРИВЕТ мир"}},
		{"кЕРРИГАН", []string{"Керриган"}},
		{"cafe", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := db.Search(context.Background(), repository.ArticleFilter{Header: ptr(tt.header)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, headers(got))
		})
	}
}
