// Package updates checks the project's GitHub releases for a newer version.
package updates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const defaultAPI = "https://api.github.com"

var ErrInvalidVersion = errors.New("invalid semantic version")

type Release struct {
	TagName    string `json:"tag_name"`
	HTMLURL    string `json:"html_url"`
	ZipballURL string `json:"zipball_url"`
}

type Checker struct {
	Owner string
	Repo  string
	Token string

	client  *http.Client
	baseURL string
}

func NewChecker(owner, repo, token string) *Checker {
	return &Checker{
		Owner:   owner,
		Repo:    repo,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultAPI,
	}
}

// Latest fetches the latest published release.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", strings.TrimRight(c.baseURL, "/"), c.Owner, c.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "token "+c.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release lookup returned %s", resp.Status)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("failed to decode release: %w", err)
	}
	if rel.TagName == "" {
		return nil, errors.New("release has no tag")
	}
	return &rel, nil
}

// Check returns the latest release and whether it is newer than current.
func (c *Checker) Check(ctx context.Context, current string) (*Release, bool, error) {
	rel, err := c.Latest(ctx)
	if err != nil {
		return nil, false, err
	}
	newer, err := Newer(current, rel.TagName)
	if err != nil {
		return rel, false, err
	}
	return rel, newer, nil
}

// Newer reports whether candidate is a higher version than current. Both
// may be given with or without a leading "v".
func Newer(current, candidate string) (bool, error) {
	cur, cand := canonical(current), canonical(candidate)
	if !semver.IsValid(cur) {
		return false, fmt.Errorf("%q: %w", current, ErrInvalidVersion)
	}
	if !semver.IsValid(cand) {
		return false, fmt.Errorf("%q: %w", candidate, ErrInvalidVersion)
	}
	return semver.Compare(cur, cand) < 0, nil
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
