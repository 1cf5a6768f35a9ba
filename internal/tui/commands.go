package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"nodectl/internal/storage"
	pkgerrors "nodectl/pkg/errors"
)

const historyLimit = 50

// loadNode fetches the latest IP lookup and speed test.
func loadNode(store storage.Storage) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		lookup, err := store.GetLatestIPLookup(ctx)
		if err != nil {
			return nodeLoadedMsg{err: err}
		}
		test, err := store.GetLatestSpeedTest(ctx)
		return nodeLoadedMsg{lookup: lookup, test: test, err: err}
	}
}

// loadHistory fetches recent speed tests and IP lookups.
func loadHistory(store storage.Storage) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		tests, err := store.GetSpeedTestHistory(ctx, historyLimit)
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		lookups, err := store.GetIPHistory(ctx, historyLimit)
		return historyLoadedMsg{tests: tests, lookups: lookups, err: err}
	}
}

// loadSettings reads the effective value and origin of every editable setting.
func loadSettings(node Node) tea.Cmd {
	return func() tea.Msg {
		msg := settingsLoadedMsg{
			values:  make(map[string]string, len(settingFields)),
			origins: make(map[string]string, len(settingFields)),
		}
		for _, f := range settingFields {
			if v, ok := node.Setting(f.key); ok {
				msg.values[f.key] = v
				msg.origins[f.key] = node.SettingOrigin(f.key)
			}
		}
		return msg
	}
}

// resolveIP races the configured echo services once.
func resolveIP(node Node) tea.Cmd {
	return func() tea.Msg {
		cfg, err := node.ResolverConfig()
		if err != nil {
			return ipResolvedMsg{err: err}
		}
		answer, err := node.ResolveIP(context.Background(), cfg)
		return ipResolvedMsg{answer: answer, err: err}
	}
}

// runSpeedTest runs a speed test, reporting phases via program.Send.
func runSpeedTest(node Node, p *tea.Program) tea.Cmd {
	return func() tea.Msg {
		cfg, err := node.SpeedTestConfig()
		if err != nil {
			return speedTestDoneMsg{err: err}
		}
		if p != nil {
			cfg.Progress = func(phase string) {
				p.Send(speedTestPhaseMsg{phase: phase})
			}
		}
		result, err := node.RunSpeedTest(context.Background(), cfg)
		return speedTestDoneMsg{result: result, err: err}
	}
}

// saveSetting persists a single setting and reloads the layers.
func saveSetting(store storage.Storage, node Node, key, value string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if err := store.SetSetting(ctx, key, value); err != nil {
			return settingSavedMsg{key: key, err: err}
		}
		if err := node.Reload(ctx); err != nil {
			return settingSavedMsg{key: key, err: err}
		}
		return settingSavedMsg{key: key, origin: node.SettingOrigin(key)}
	}
}

// resetSetting removes a persisted setting so lower layers apply again.
func resetSetting(store storage.Storage, node Node, key string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if err := store.DeleteSetting(ctx, key); err != nil && !errors.Is(err, pkgerrors.ErrSettingNotFound) {
			return settingSavedMsg{key: key, removed: true, err: err}
		}
		if err := node.Reload(ctx); err != nil {
			return settingSavedMsg{key: key, removed: true, err: err}
		}
		return settingSavedMsg{key: key, removed: true, origin: node.SettingOrigin(key)}
	}
}

// clearNotification returns a command that fires after a delay.
func clearNotification(d time.Duration, version int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}
