package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nodectl/internal/app"
	"nodectl/internal/publicip"
	"nodectl/internal/speedtest"
	"nodectl/internal/storage"
)

// Tab indices.
const (
	tabStatus   = 0
	tabHistory  = 1
	tabSettings = 2
	tabCount    = 3
)

// Node is what the dashboard drives.
type Node interface {
	StorageDir() string
	Setting(key string) (string, bool)
	SettingOrigin(key string) string
	Reload(ctx context.Context) error
	SpeedTestConfig() (speedtest.Config, error)
	RunSpeedTest(ctx context.Context, cfg speedtest.Config) (*speedtest.Result, error)
	ResolverConfig() (publicip.Config, error)
	ResolveIP(ctx context.Context, cfg publicip.Config) (*publicip.Answer, error)
}

// Deps holds all dependencies injected into the TUI.
type Deps struct {
	Node    Node
	Storage storage.Storage
	DataDir string
	DBPath  string
}

// Model is the root BubbleTea model.
type Model struct {
	// Dependencies.
	node    Node
	store   storage.Storage
	program *tea.Program

	// Dimensions.
	width  int
	height int

	// Navigation.
	activeTab int
	showHelp  bool

	// Tab models.
	statusTab   statusModel
	historyTab  historyModel
	settingsTab settingsModel

	// Notification.
	notification    string
	notificationErr bool
	notifVersion    int

	// Spinner for async operations.
	spinner spinner.Model
}

// NewModel creates a new root Model.
func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &Model{
		node:        deps.Node,
		store:       deps.Storage,
		activeTab:   tabStatus,
		spinner:     s,
		statusTab:   newStatusModel(deps.Node.StorageDir(), deps.DataDir, deps.DBPath),
		historyTab:  newHistoryModel(),
		settingsTab: newSettingsModel(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		loadNode(m.store),
		loadHistory(m.store),
		loadSettings(m.node),
		m.spinner.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.statusTab.setSize(msg.Width, ch)
		m.historyTab.setSize(msg.Width, ch)
		m.settingsTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if cmd := m.handleGlobalKey(msg); cmd != nil {
			return m, cmd
		}

	// Data loading.
	case nodeLoadedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Load failed: %v", msg.err), true)
		} else {
			m.statusTab.lookup = msg.lookup
			m.statusTab.test = msg.test
		}
	case historyLoadedMsg:
		if msg.err == nil {
			m.historyTab.setHistory(msg.tests, msg.lookups)
		}
	case settingsLoadedMsg:
		m.settingsTab.setSettings(msg.values, msg.origins)
		m.statusTab.storageDir = m.node.StorageDir()

	// Public IP.
	case ipResolvedMsg:
		m.statusTab.resolving = false
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("IP lookup failed: %v", msg.err), true)
		} else {
			m.setNotification(fmt.Sprintf("Public IP %s via %s", msg.answer.IP, msg.answer.Service), false)
		}
		cmds = append(cmds, loadNode(m.store), loadHistory(m.store))

	// Speed test.
	case speedTestPhaseMsg:
		m.statusTab.phase = msg.phase
	case speedTestDoneMsg:
		m.statusTab.testing = false
		m.statusTab.phase = ""
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Speed test failed: %v", msg.err), true)
		} else {
			m.setNotification(fmt.Sprintf("Download %.2f Mbps, upload %.2f Mbps",
				msg.result.Download.Mbps(), msg.result.Upload.Mbps()), false)
		}
		cmds = append(cmds, loadNode(m.store), loadHistory(m.store))

	// Settings.
	case settingSavedMsg:
		m.notifySettingSaved(msg)
		m.statusTab.storageDir = m.node.StorageDir()
		cmds = append(cmds, loadSettings(m.node))

	// Notification.
	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}
	}

	// Spinner.
	if m.busy() != "" {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Schedule notification auto-clear when a new notification was set.
	if m.notifVersion > prevNotifVersion && m.notification != "" {
		cmds = append(cmds, clearNotification(4*time.Second, m.notifVersion))
	}

	// Delegate to active tab.
	switch m.activeTab {
	case tabHistory:
		cmds = append(cmds, m.historyTab.Update(msg, m))
	case tabSettings:
		cmds = append(cmds, m.settingsTab.Update(msg, m))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := renderHeader(m.activeTab, m.busy(), m.publicIP(), m.width)

	var content string
	switch m.activeTab {
	case tabStatus:
		content = m.statusTab.View(m.spinner)
	case tabHistory:
		content = m.historyTab.View()
	case tabSettings:
		content = m.settingsTab.View()
	}

	var notif string
	if m.notification != "" {
		if m.notificationErr {
			notif = notifErrorStyle.Render("! " + m.notification)
		} else {
			notif = notifSuccessStyle.Render("* " + m.notification)
		}
	}

	footer := renderFooter(renderHelpBar(m.showHelp), m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

// busy names the running background operation, if any.
func (m *Model) busy() string {
	switch {
	case m.statusTab.testing:
		return "testing"
	case m.statusTab.resolving:
		return "resolving"
	}
	return ""
}

func (m *Model) publicIP() string {
	if l := m.statusTab.lookup; l != nil && l.Success {
		return l.Address
	}
	return ""
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
// This prevents BubbleTea from leaving ghost lines when switching tabs.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 2
	}
	return max(m.height-overhead, 1)
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) tea.Cmd {
	// Don't intercept while a setting is being edited.
	if m.activeTab == tabSettings && m.settingsTab.editing {
		return nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		return nil

	case key.Matches(msg, keys.TabNext):
		m.activeTab = (m.activeTab + 1) % tabCount
		return nil

	case key.Matches(msg, keys.TabPrev):
		m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		return nil

	case key.Matches(msg, keys.ResolveIP):
		if m.statusTab.resolving {
			return nil
		}
		m.statusTab.resolving = true
		return tea.Batch(resolveIP(m.node), m.spinner.Tick)

	case key.Matches(msg, keys.SpeedTest):
		if m.statusTab.testing {
			return nil
		}
		m.statusTab.testing = true
		m.statusTab.phase = speedtest.PhaseMeta
		return tea.Batch(runSpeedTest(m.node, m.program), m.spinner.Tick)

	case key.Matches(msg, keys.Refresh):
		return tea.Batch(
			loadNode(m.store),
			loadHistory(m.store),
			loadSettings(m.node),
		)
	}

	return nil
}

func (m *Model) notifySettingSaved(msg settingSavedMsg) {
	switch {
	case msg.err != nil:
		m.setNotification(fmt.Sprintf("Save failed: %v", msg.err), true)
	case msg.removed && (msg.origin == "" || msg.origin == app.LayerDefault):
		m.setNotification(fmt.Sprintf("Reset %s", msg.key), false)
	case msg.removed:
		m.setNotification(fmt.Sprintf("Reset %s, still set by %s", msg.key, msg.origin), false)
	case msg.origin != app.LayerDatabase:
		m.setNotification(fmt.Sprintf("Saved %s, but the %s layer overrides it", msg.key, msg.origin), true)
	default:
		m.setNotification(fmt.Sprintf("Saved %s", msg.key), false)
	}
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

// NewProgram creates a bubbletea program with alt screen.
func NewProgram(deps Deps) *tea.Program {
	m := NewModel(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p
	return p
}
