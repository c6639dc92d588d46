// Package update checks GitHub for a newer playcord release.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Repository is the GitHub owner/name releases are read from. Forks override
// it at build time:
//
//	-X tools.zach/dev/playcord/internal/update.Repository=owner/name
var Repository = "zachthedev/playcord"

// LatestReleaseURL returns the GitHub API endpoint for repo's latest release.
func LatestReleaseURL(repo string) string {
	return "https://api.github.com/repos/" + repo + "/releases/latest"
}

// ///////////////////////////////////////////////
// Checker
// ///////////////////////////////////////////////

// Checker fetches the latest release tag.
type Checker struct {
	URL    string
	client *retryablehttp.Client
}

// NewChecker returns a Checker for url with a short retry budget. The check
// runs once at startup and must never hold up the daemon for long.
func NewChecker(url string) *Checker {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil
	return &Checker{URL: url, client: client}
}

type release struct {
	TagName string `json:"tag_name"`
}

// Latest returns the tag of the most recent published release.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", c.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", c.URL, resp.StatusCode)
	}

	var rel release
	if err := json.NewDecoder(io.LimitReader(resp.Body, 256<<10)).Decode(&rel); err != nil {
		return "", fmt.Errorf("decoding release: %w", err)
	}
	if rel.TagName == "" {
		return "", fmt.Errorf("release has no tag_name")
	}
	return rel.TagName, nil
}

// Check logs at info level when a release newer than current exists. Errors
// are logged at debug level only; an offline machine is not a problem.
func (c *Checker) Check(ctx context.Context, current string) {
	latest, err := c.Latest(ctx)
	if err != nil {
		slog.Debug("version check failed", "error", err)
		return
	}
	if Newer(current, latest) {
		slog.Info("new version available", "current", current, "latest", latest)
	}
}

// ///////////////////////////////////////////////
// Versions
// ///////////////////////////////////////////////

// Newer reports whether latest is a higher semantic version than current.
// Unparsable versions, such as development builds, never compare newer.
func Newer(current, latest string) bool {
	a, aPre, ok := parseSemver(current)
	if !ok {
		return false
	}
	b, bPre, ok := parseSemver(latest)
	if !ok {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	// A pre-release sorts before the release it precedes.
	return aPre && !bPre
}

// parseSemver splits "v1.2.3-rc.1+meta" into [1 2 3] and whether it carries
// a pre-release suffix.
func parseSemver(s string) (v [3]int, pre bool, ok bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s, pre = s[:i], true
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return v, false, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return v, false, false
		}
		v[i] = n
	}
	return v, pre, true
}
