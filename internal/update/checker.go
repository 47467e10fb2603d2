package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/hoeteam/openchat/internal/version"
	"github.com/hoeteam/openchat/pkg/config"
	"go.uber.org/zap"
)

// nightlyAdvisory explains why nightly builds never resolve through the
// release list. This is policy, not a failure mode.
const nightlyAdvisory = "nightly builds are published by CI, not through releases; visit the actions page for the latest build"

// Result is the outcome of one update check. Either Error is set, in which
// case HasUpdate is false and LatestRelease is nil, or the fields reflect a
// completed comparison. Results are never mutated after creation.
type Result struct {
	HasUpdate      bool
	LatestRelease  *ReleaseInfo
	CurrentVersion string
	LatestVersion  string
	Channel        version.Channel
	Error          string
}

// Checker resolves whether a newer release than the running build exists on
// the requested channel.
type Checker struct {
	httpClient      *http.Client
	releasesURL     string
	releasesPageURL string
	actionsPageURL  string
	currentVersion  string
	logger          *zap.Logger
}

func NewChecker(cfg config.UpdateConfig, currentVersion string, logger *zap.Logger) *Checker {
	return &Checker{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
			},
		},
		releasesURL:     cfg.ReleasesURL,
		releasesPageURL: cfg.ReleasesPageURL,
		actionsPageURL:  cfg.ActionsPageURL,
		currentVersion:  currentVersion,
		logger:          logger,
	}
}

// CurrentVersion returns the running build's version string.
func (c *Checker) CurrentVersion() string {
	return c.currentVersion
}

// CurrentChannel classifies the running build.
func (c *Checker) CurrentChannel() version.Channel {
	return version.ClassifyChannel(c.currentVersion)
}

// CheckForUpdates checks the channel the running build belongs to.
func (c *Checker) CheckForUpdates(ctx context.Context) (*Result, error) {
	return c.CheckChannel(ctx, c.CurrentChannel())
}

// CheckChannel checks a specific release channel. Transport and parse
// failures come back inside the Result; the returned error is non-nil only
// when ctx is cancelled, in which case no result is produced.
func (c *Checker) CheckChannel(ctx context.Context, target version.Channel) (*Result, error) {
	currentParsed, err := version.Parse(c.currentVersion)
	if err != nil {
		return c.failure(target, "", fmt.Sprintf("unable to parse current version: %s", c.currentVersion)), nil
	}

	// Nightly builds are not tracked through the release list.
	if target == version.ChannelNightly {
		return c.failure(target, "", nightlyAdvisory), nil
	}

	releases, err := c.fetchReleases(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return c.failure(target, "", describeFetchError(err)), nil
	}

	prefix := target.String()
	var candidates []ReleaseInfo
	for _, release := range releases {
		if strings.HasPrefix(strings.ToLower(release.TagName), prefix) {
			candidates = append(candidates, release)
		}
	}
	if len(candidates) == 0 {
		return c.failure(target, "", fmt.Sprintf("no %s releases found", prefix)), nil
	}

	// ISO 8601 timestamps order correctly as strings.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PublishedAt > candidates[j].PublishedAt
	})
	latest := candidates[0]

	latestParsed, err := version.Parse(latest.TagName)
	if err != nil {
		return c.failure(target, latest.TagName,
			fmt.Sprintf("unable to parse latest version: %s", latest.TagName)), nil
	}

	hasUpdate := latestParsed.NewerThan(currentParsed)
	c.logger.Info("update check completed",
		zap.String("current", c.currentVersion),
		zap.String("latest", latest.TagName),
		zap.Bool("has_update", hasUpdate))

	return &Result{
		HasUpdate:      hasUpdate,
		LatestRelease:  &latest,
		CurrentVersion: c.currentVersion,
		LatestVersion:  latest.TagName,
		Channel:        target,
	}, nil
}

func (c *Checker) failure(channel version.Channel, latestVersion, message string) *Result {
	return &Result{
		CurrentVersion: c.currentVersion,
		LatestVersion:  latestVersion,
		Channel:        channel,
		Error:          message,
	}
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

func (c *Checker) fetchReleases(ctx context.Context) ([]ReleaseInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.releasesURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{status: resp.StatusCode}
	}

	var releases []ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, err
	}
	return releases, nil
}

func describeFetchError(err error) string {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("release list request failed: %d", statusErr.status)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "network connection failed, check your connection"
	}
	return fmt.Sprintf("update check failed: %v", err)
}

// ReleasesPageURL is the releases page for manual downloads.
func (c *Checker) ReleasesPageURL() string {
	return c.releasesPageURL
}

// ActionsPageURL is where nightly CI builds are published.
func (c *Checker) ActionsPageURL() string {
	return c.actionsPageURL
}

// VersionPageURL is the page of one specific release tag.
func (c *Checker) VersionPageURL(tag string) string {
	return c.releasesPageURL + "/tag/" + tag
}
