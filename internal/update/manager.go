package update

import (
	"context"
	"errors"
	"sync"

	"github.com/hoeteam/openchat/internal/storage"
	"github.com/hoeteam/openchat/internal/version"
	"go.uber.org/zap"
)

const (
	keyIgnoredVersion    = "ignored_version"
	keyNotificationShown = "update_notification_shown"
)

// Manager runs update checks and remembers which versions the user already
// ignored or was notified about. At most one check is in flight at a time:
// starting a new one cancels its predecessor.
type Manager struct {
	checker *Checker
	store   storage.Store
	logger  *zap.Logger

	mu       sync.Mutex
	inFlight *inFlightCheck
}

type inFlightCheck struct {
	cancel context.CancelFunc
}

func NewManager(checker *Checker, store storage.Store, logger *zap.Logger) *Manager {
	return &Manager{
		checker: checker,
		store:   store,
		logger:  logger,
	}
}

// CurrentVersion returns the running build's version string.
func (m *Manager) CurrentVersion() string {
	return m.checker.CurrentVersion()
}

// CurrentChannel classifies the running build.
func (m *Manager) CurrentChannel() version.Channel {
	return m.checker.CurrentChannel()
}

// CheckForUpdates checks the running build's own channel.
func (m *Manager) CheckForUpdates(ctx context.Context) (*Result, error) {
	return m.CheckChannel(ctx, m.checker.CurrentChannel())
}

// CheckChannel runs one check against target, cancelling any check that is
// still in flight so the latest request wins.
func (m *Manager) CheckChannel(ctx context.Context, target version.Channel) (*Result, error) {
	checkCtx, call := m.begin(ctx)
	defer m.finish(call)

	result, err := m.checker.CheckChannel(checkCtx, target)
	if err != nil {
		return nil, err
	}
	if result.Error != "" {
		m.logger.Warn("update check reported a problem",
			zap.String("channel", target.String()),
			zap.String("error", result.Error))
	}
	return result, nil
}

func (m *Manager) begin(ctx context.Context) (context.Context, *inFlightCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight != nil {
		m.inFlight.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	call := &inFlightCheck{cancel: cancel}
	m.inFlight = call
	return ctx, call
}

func (m *Manager) finish(call *inFlightCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call.cancel()
	// A superseded check must not clear its successor's slot.
	if m.inFlight == call {
		m.inFlight = nil
	}
}

// IgnoreVersion records a tag the user chose not to be reminded about.
func (m *Manager) IgnoreVersion(ctx context.Context, tag string) error {
	return m.store.SetString(ctx, keyIgnoredVersion, tag)
}

// IgnoredVersion returns the last ignored tag, or "" when none is recorded.
func (m *Manager) IgnoredVersion(ctx context.Context) (string, error) {
	tag, err := m.store.GetString(ctx, keyIgnoredVersion)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return tag, err
}

// MarkNotificationShown records that the update notification was displayed.
func (m *Manager) MarkNotificationShown(ctx context.Context) error {
	return m.store.SetBool(ctx, keyNotificationShown, true)
}

// NotificationShown reports whether the update notification was displayed.
func (m *Manager) NotificationShown(ctx context.Context) (bool, error) {
	shown, err := m.store.GetBool(ctx, keyNotificationShown)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return shown, err
}

// ResetNotificationState clears the shown flag, re-arming the notification
// for the next newer release.
func (m *Manager) ResetNotificationState(ctx context.Context) error {
	return m.store.Delete(ctx, keyNotificationShown)
}

// DownloadPageURL picks the page to open for a given result: the tag's own
// page when known, the actions page for nightly builds, the releases page
// otherwise.
func (m *Manager) DownloadPageURL(tag string, channel version.Channel) string {
	switch {
	case tag != "":
		return m.checker.VersionPageURL(tag)
	case channel == version.ChannelNightly:
		return m.checker.ActionsPageURL()
	default:
		return m.checker.ReleasesPageURL()
	}
}
