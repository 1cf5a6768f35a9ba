package tui

import (
	"nodectl/internal/publicip"
	"nodectl/internal/speedtest"
	"nodectl/internal/storage/models"
)

// Data loading messages.

type nodeLoadedMsg struct {
	lookup *models.IPLookup
	test   *models.SpeedTest
	err    error
}

type historyLoadedMsg struct {
	tests   []*models.SpeedTest
	lookups []*models.IPLookup
	err     error
}

type settingsLoadedMsg struct {
	values  map[string]string
	origins map[string]string
}

// Public IP messages.

type ipResolvedMsg struct {
	answer *publicip.Answer
	err    error
}

// Speed test messages.

type speedTestPhaseMsg struct {
	phase string
}

type speedTestDoneMsg struct {
	result *speedtest.Result
	err    error
}

// Settings update messages.

// settingSavedMsg reports a stored or removed setting. origin names the
// layer supplying the key afterwards.
type settingSavedMsg struct {
	key     string
	removed bool
	origin  string
	err     error
}

// Notification message.

type clearNotificationMsg struct {
	version int
}
