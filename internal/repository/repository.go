// Package repository declares the persistence contracts implemented by the
// sqlite and postgres backends and decorated by the cached package.
//
// Lookups of a missing id return an apperror.ErrNotFound error, never
// (nil, nil).
package repository

import (
	"context"
	"time"

	"github.com/sakif/knowledge-base/internal/model"
)

// ArticleFilter is the input to ArticleRepository.Search. Pointer fields are
// optional: nil means "no filter on this column".
//
// Visibility is not a plain filter. With RequesterID nil only PUBLIC articles
// are returned, whatever Access asks for. With RequesterID set the result is
// every non-PRIVATE article plus the requester's own PRIVATE ones; Access, if
// set, narrows that union further.
type ArticleFilter struct {
	Limit         int
	Offset        int
	Active        *bool
	Access        *model.Access
	Tags          []string
	Header        *string
	CreatedAtFrom *time.Time
	CreatedAtTo   *time.Time
	RequesterID   *string
}

// ArticleUpdate carries the fields of a partial update. Only fields with
// Set == true are written. Content and Tags accept an explicit null, which
// clears the column.
type ArticleUpdate struct {
	Active  model.Optional[bool]
	Header  model.Optional[string]
	Content model.Optional[string]
	Tags    model.Optional[[]string]
	Access  model.Optional[model.Access]
}

// DeleteResult identifies what was deleted. It is returned even when the id
// did not exist, because delete is idempotent.
type DeleteResult struct {
	ID string `json:"id"`
}

// CacheID lets the cache decorator invalidate by the deleted id.
func (d *DeleteResult) CacheID() string {
	if d == nil {
		return ""
	}
	return d.ID
}

// ArticleRepository is the article store. Create always stores a new article
// as active and defaults an empty Access to PUBLIC.
type ArticleRepository interface {
	Create(ctx context.Context, article *model.Article) error
	GetByID(ctx context.Context, id string) (*model.Article, error)
	Update(ctx context.Context, id string, upd ArticleUpdate) (*model.Article, error)
	Delete(ctx context.Context, id string) (*DeleteResult, error)
	Search(ctx context.Context, filter ArticleFilter) ([]model.Article, error)
}

// UserFilter is the input to UserRepository.SearchUsers.
type UserFilter struct {
	Limit  int
	Offset int
	Name   *string
	Active *bool
}

// UserUpdate carries the fields of a partial user update. Hash and Salt are
// always set together, on password rotation.
type UserUpdate struct {
	Name   model.Optional[string]
	Active model.Optional[bool]
	Hash   model.Optional[string]
	Salt   model.Optional[string]
}

type UserRepository interface {
	// CreateUser stores a new user with its password hash and salt. A
	// duplicate email (case-insensitive) returns apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User, hash, salt string) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetCredentialsByEmail matches email case-insensitively.
	GetCredentialsByEmail(ctx context.Context, email string) (*model.Credentials, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) (*model.User, error)
	SearchUsers(ctx context.Context, filter UserFilter) ([]model.User, error)
}

// Apply writes the provided fields onto a and reports whether anything was
// provided at all. Null on a non-nullable field is ignored; validation
// rejects it before it gets here.
func (u ArticleUpdate) Apply(a *model.Article) bool {
	provided := false

	if u.Active.HasValue() {
		a.Active = u.Active.Value
		provided = true
	}
	if u.Header.HasValue() {
		a.Header = u.Header.Value
		provided = true
	}
	if u.Content.Set {
		if u.Content.Null {
			a.Content = nil
		} else {
			content := u.Content.Value
			a.Content = &content
		}
		provided = true
	}
	if u.Tags.Set {
		a.Tags = NormalizeTags(u.Tags.Value)
		provided = true
	}
	if u.Access.HasValue() {
		a.Access = u.Access.Value
		provided = true
	}

	return provided
}

// Apply writes the provided fields onto user and reports whether any column
// changes. hash and salt point at the stored credential pair.
func (u UserUpdate) Apply(user *model.User, hash, salt *string) bool {
	provided := false

	if u.Name.HasValue() {
		user.Name = u.Name.Value
		provided = true
	}
	if u.Active.HasValue() {
		user.Active = u.Active.Value
		provided = true
	}
	if u.Hash.HasValue() && u.Salt.HasValue() {
		*hash = u.Hash.Value
		*salt = u.Salt.Value
		provided = true
	}

	return provided
}

// NormalizeTags maps an empty tag list to nil so that a stored "no tags"
// reads back identically from every backend and from the cache.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}
