// Package model defines the data structures used throughout the application.
package model

import "time"

// Access is the visibility tier of an article.
//
//	PUBLIC     → anyone, no token required
//	RESTRICTED → any authenticated user
//	PRIVATE    → only the author
type Access string

const (
	AccessPublic     Access = "PUBLIC"
	AccessRestricted Access = "RESTRICTED"
	AccessPrivate    Access = "PRIVATE"
)

// Valid reports whether a is one of the three known tiers.
func (a Access) Valid() bool {
	switch a {
	case AccessPublic, AccessRestricted, AccessPrivate:
		return true
	}
	return false
}

// Article is a short piece of content owned by its author.
//
// Content is a pointer because the column is nullable and a PATCH with
// "content": null must clear it, which is different from "content": "".
// AuthorName is denormalized from the users table on every read.
type Article struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Active     bool      `json:"active"`
	Header     string    `json:"header"`
	Content    *string   `json:"content"`
	Tags       []string  `json:"tags"`
	Access     Access    `json:"access"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName"`
}

// CacheID is the key the article is cached under. A nil article has none.
func (a *Article) CacheID() string {
	if a == nil {
		return ""
	}
	return a.ID
}
