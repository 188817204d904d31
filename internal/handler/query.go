package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
)

// Query-string parsing for the search endpoints. Absent parameters yield the
// default (or nil); present but malformed ones are validation errors. Range
// checks belong to the service.

func queryInt(q url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer number")
	}
	return n, nil
}

func queryBool(q url.Values, name string) (*bool, error) {
	if !q.Has(name) {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(q.Get(name))))
	if err != nil {
		return nil, apperror.ValidationFailed(name, name+" must be a boolean value")
	}
	return &b, nil
}

func queryString(q url.Values, name string) *string {
	if !q.Has(name) {
		return nil
	}
	s := q.Get(name)
	return &s
}

func queryAccess(q url.Values) *model.Access {
	s := queryString(q, "access")
	if s == nil {
		return nil
	}
	a := model.Access(*s)
	return &a
}

// queryTags splits a comma-separated list, trims each tag and drops empty
// ones. "go, ,db" is ["go", "db"]; "," is no filter at all.
func queryTags(q url.Values) []string {
	raw := q.Get("tags")
	if raw == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// queryTime accepts an RFC 3339 timestamp or a bare date (midnight UTC).
func queryTime(q url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperror.ValidationFailed(name, name+" must be a valid ISO 8601 date string")
}
