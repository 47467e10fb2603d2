package update

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoeteam/openchat/internal/storage"
	"github.com/hoeteam/openchat/internal/version"
	"go.uber.org/zap"
)

func testManager(currentVersion, releasesURL string) *Manager {
	checker := testChecker(currentVersion, releasesURL)
	return NewManager(checker, storage.NewMemoryStore(), zap.NewNop())
}

func TestManagerIgnoredVersion(t *testing.T) {
	ctx := context.Background()
	m := testManager("Stable-1.2", "")

	tag, err := m.IgnoredVersion(ctx)
	require.NoError(t, err)
	assert.Empty(t, tag)

	require.NoError(t, m.IgnoreVersion(ctx, "Stable-1.3"))
	tag, err = m.IgnoredVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Stable-1.3", tag)
}

func TestManagerNotificationState(t *testing.T) {
	ctx := context.Background()
	m := testManager("Stable-1.2", "")

	shown, err := m.NotificationShown(ctx)
	require.NoError(t, err)
	assert.False(t, shown)

	require.NoError(t, m.MarkNotificationShown(ctx))
	shown, err = m.NotificationShown(ctx)
	require.NoError(t, err)
	assert.True(t, shown)

	require.NoError(t, m.ResetNotificationState(ctx))
	shown, err = m.NotificationShown(ctx)
	require.NoError(t, err)
	assert.False(t, shown)
}

func TestManagerDownloadPageURL(t *testing.T) {
	m := testManager("Stable-1.2", "")

	assert.Equal(t, "https://github.com/HOE-Team/OpenChat/releases/tag/Stable-1.3",
		m.DownloadPageURL("Stable-1.3", version.ChannelStable))
	assert.Equal(t, "https://github.com/HOE-Team/OpenChat/actions",
		m.DownloadPageURL("", version.ChannelNightly))
	assert.Equal(t, "https://github.com/HOE-Team/OpenChat/releases",
		m.DownloadPageURL("", version.ChannelStable))
}

func TestManagerChecksOwnChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]ReleaseInfo{
			{TagName: "Beta-2.0", PublishedAt: "2025-06-10T12:00:00Z"},
		})
	}))
	defer server.Close()

	m := testManager("Beta-1.0", server.URL)
	result, err := m.CheckForUpdates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, version.ChannelBeta, result.Channel)
	assert.True(t, result.HasUpdate)
}

// A new check cancels the one still in flight; the superseded check reports
// cancellation instead of publishing a stale result.
func TestManagerLatestCheckWins(t *testing.T) {
	var calls atomic.Int32
	firstBlocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(firstBlocked)
			<-r.Context().Done()
			return
		}
		json.NewEncoder(w).Encode([]ReleaseInfo{
			{TagName: "Stable-1.3", PublishedAt: "2025-06-10T12:00:00Z"},
		})
	}))
	defer server.Close()

	m := testManager("Stable-1.2", server.URL)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.CheckChannel(context.Background(), version.ChannelStable)
		firstDone <- err
	}()

	<-firstBlocked
	result, err := m.CheckChannel(context.Background(), version.ChannelStable)
	require.NoError(t, err)
	assert.True(t, result.HasUpdate)

	assert.ErrorIs(t, <-firstDone, context.Canceled)
}
