package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

// These fakes store data in maps. They implement the repository contracts
// closely enough for the service rules to be tested without a database; the
// store packages test the real query semantics.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeArticleRepo struct {
	articles   map[string]*model.Article
	nextID     int
	lastFilter repository.ArticleFilter
	err        error
}

func newFakeArticleRepo() *fakeArticleRepo {
	return &fakeArticleRepo{articles: make(map[string]*model.Article)}
}

func (f *fakeArticleRepo) Create(_ context.Context, a *model.Article) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	a.ID = fmt.Sprintf("article-%d", f.nextID)
	stored := *a
	f.articles[a.ID] = &stored
	return nil
}

func (f *fakeArticleRepo) GetByID(_ context.Context, id string) (*model.Article, error) {
	a, ok := f.articles[id]
	if !ok {
		return nil, apperror.NotFound("article", id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeArticleRepo) Update(_ context.Context, id string, upd repository.ArticleUpdate) (*model.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.articles[id]
	if !ok {
		return nil, apperror.NotFound("article", id)
	}
	upd.Apply(a)
	cp := *a
	return &cp, nil
}

func (f *fakeArticleRepo) Delete(_ context.Context, id string) (*repository.DeleteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.articles, id)
	return &repository.DeleteResult{ID: id}, nil
}

func (f *fakeArticleRepo) Search(_ context.Context, filter repository.ArticleFilter) ([]model.Article, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []model.Article{}, nil
}

type fakeUser struct {
	user model.User
	hash string
	salt string
}

type fakeUserRepo struct {
	users      map[string]*fakeUser
	nextID     int
	lastFilter repository.UserFilter
	err        error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*fakeUser)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User, hash, salt string) error {
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.users {
		if existing.user.Email == strings.ToLower(u.Email) {
			return apperror.Conflict("User with this email already exists")
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	f.users[u.ID] = &fakeUser{user: *u, hash: hash, salt: salt}
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := u.user
	return &cp, nil
}

func (f *fakeUserRepo) GetCredentialsByEmail(_ context.Context, email string) (*model.Credentials, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.user.Email == strings.ToLower(email) {
			return &model.Credentials{UserID: u.user.ID, Hash: u.hash, Salt: u.salt, Active: u.user.Active}, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) UpdateUser(_ context.Context, id string, upd repository.UserUpdate) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	upd.Apply(&u.user, &u.hash, &u.salt)
	cp := u.user
	return &cp, nil
}

func (f *fakeUserRepo) SearchUsers(_ context.Context, filter repository.UserFilter) ([]model.User, error) {
	f.lastFilter = filter
	return []model.User{}, nil
}
