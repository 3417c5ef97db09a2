// Package githuburl checks repository URLs before anything is sent to the backend.
package githuburl

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmpty     = errors.New("repository url is required")
	ErrMalformed = errors.New("not a github repository url")
)

var pattern = regexp.MustCompile(`^https://github\.com/([\w\-.]+)/([\w\-.]+)/?$`)

// Repository is the owner/name pair of a validated URL.
type Repository struct {
	URL   string
	Owner string
	Name  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// Parse trims raw and checks it against https://github.com/<owner>/<repo>[/].
func Parse(raw string) (Repository, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Repository{}, ErrEmpty
	}
	m := pattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Repository{}, ErrMalformed
	}
	return Repository{URL: trimmed, Owner: m[1], Name: m[2]}, nil
}
