package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nodectl/internal/app"
	"nodectl/internal/settings"
)

// settingField is an editable row. Fields with choices cycle through them;
// the rest are edited as text.
type settingField struct {
	key      string
	label    string
	help     string
	fallback string // shown when no layer has the key
	choices  []string
}

var settingFields = []settingField{
	{key: settings.KeyStorageDir, label: "Storage Dir", help: "Empty resets to <userDataPath>/storage", fallback: ""},
	{key: app.KeySpeedTestServer, label: "Test Server", help: "Speed test server URL", fallback: "https://speed.cloudflare.com"},
	{key: app.KeySpeedTestMaxTime, label: "Test Budget", help: "Time budget for a whole speed test", fallback: "5s"},
	{key: app.KeySpeedTestRateLimit, label: "Rate Limit", help: "Download limit in MiB/s, 0 for none", fallback: "0"},
	{key: app.KeyPublicIPTimeout, label: "IP Timeout", help: "Per-service timeout for IP lookups", fallback: "600ms"},
	{key: app.KeyWatchInterval, label: "Watch Every", help: "Interval for 'nodectl ip watch'", fallback: "5m"},
	{key: app.KeyLogLevel, label: "Log Level", help: "Log verbosity", fallback: "info", choices: []string{"debug", "info", "warn", "error"}},
}

type settingsModel struct {
	// Effective values and the layer supplying each. Keys no layer has are absent.
	values  map[string]string
	origins map[string]string

	cursor  int
	editing bool
	input   textinput.Model
	width   int
	height  int
}

func newSettingsModel() settingsModel {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorPurple)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorFg)

	return settingsModel{
		values:  make(map[string]string),
		origins: make(map[string]string),
		input:   ti,
	}
}

func (sm *settingsModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
	sm.input.Width = w / 2
}

func (sm *settingsModel) setSettings(values, origins map[string]string) {
	sm.values = values
	sm.origins = origins
}

func (sm *settingsModel) selected() settingField {
	return settingFields[min(max(sm.cursor, 0), len(settingFields)-1)]
}

// value returns the effective value of f and whether any layer sets it.
func (sm *settingsModel) value(f settingField) (string, bool) {
	v, ok := sm.values[f.key]
	if !ok {
		return f.fallback, false
	}
	return v, true
}

// overridden reports whether a layer above the database supplies key, so
// saving it from here would not change the effective value.
func (sm *settingsModel) overridden(key string) bool {
	switch sm.origins[key] {
	case app.LayerEnv, app.LayerEnvFile, app.LayerFile:
		return true
	}
	return false
}

func (sm *settingsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if sm.editing {
		return sm.updateEditing(msg, root)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	f := sm.selected()
	switch km.String() {
	case "up", "k":
		sm.cursor = max(sm.cursor-1, 0)
	case "down", "j":
		sm.cursor = min(sm.cursor+1, len(settingFields)-1)
	case "left", "h":
		if f.choices != nil {
			return sm.cycle(root, f, -1)
		}
	case "right", "l":
		if f.choices != nil {
			return sm.cycle(root, f, 1)
		}
	case "enter":
		if f.choices != nil {
			return sm.cycle(root, f, 1)
		}
		v, _ := sm.value(f)
		sm.editing = true
		sm.input.SetValue(v)
		sm.input.Focus()
		return textinput.Blink
	default:
		if key.Matches(km, keys.Reset) {
			return resetSetting(root.store, root.node, f.key)
		}
	}
	return nil
}

// cycle moves a choice field to the next or previous option and saves it.
func (sm *settingsModel) cycle(root *Model, f settingField, dir int) tea.Cmd {
	v, _ := sm.value(f)
	idx := 0
	for i, c := range f.choices {
		if c == v {
			idx = i
			break
		}
	}
	next := f.choices[(idx+dir+len(f.choices))%len(f.choices)]
	sm.values[f.key] = next
	return saveSetting(root.store, root.node, f.key, next)
}

func (sm *settingsModel) updateEditing(msg tea.Msg, root *Model) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Back):
			sm.stopEditing()
			return nil
		case key.Matches(km, keys.Enter):
			sm.stopEditing()
			return sm.submit(root, strings.TrimSpace(sm.input.Value()))
		}
	}

	var cmd tea.Cmd
	sm.input, cmd = sm.input.Update(msg)
	return cmd
}

func (sm *settingsModel) stopEditing() {
	sm.editing = false
	sm.input.Blur()
}

// submit stores an edited text value. An empty value removes the stored
// key so lower layers apply again; an untouched absent key stores nothing.
func (sm *settingsModel) submit(root *Model, v string) tea.Cmd {
	f := sm.selected()
	current, present := sm.value(f)

	switch {
	case !present && (v == "" || v == f.fallback):
		return nil
	case v == "":
		return resetSetting(root.store, root.node, f.key)
	case present && v == current && sm.origins[f.key] == app.LayerDatabase:
		return nil
	}
	sm.values[f.key] = v
	return saveSetting(root.store, root.node, f.key, v)
}

func (sm *settingsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	for i, f := range settingFields {
		b.WriteString(sm.renderRow(f, i == sm.cursor))
		b.WriteString("\n")

		if i == sm.cursor && !sm.editing {
			hint := f.help
			if f.choices != nil {
				hint += "  (enter/arrows to change, x to reset)"
			} else {
				hint += "  (enter to edit, x to reset)"
			}
			if sm.overridden(f.key) {
				hint += "  " + warningStyle.Render("set by "+sm.origins[f.key]+", edits here are shadowed")
			}
			b.WriteString(dimStyle.PaddingLeft(4).Render(hint) + "\n")
		}
	}

	return forceHeight(b.String(), sm.width, sm.height)
}

func (sm *settingsModel) renderRow(f settingField, selected bool) string {
	labelStyle := lipgloss.NewStyle().Foreground(colorFg).Width(18)
	prefix := "  "
	if selected {
		labelStyle = labelStyle.Bold(true).Foreground(colorPurple)
		prefix = "> "
	}
	label := labelStyle.Render(prefix + f.label)

	if selected && sm.editing {
		return label + sm.input.View()
	}

	v, present := sm.value(f)
	var value string
	switch {
	case selected && f.choices != nil:
		value = renderChoices(f.choices, v)
	case selected:
		value = lipgloss.NewStyle().Foreground(colorFg).Render(v)
	default:
		value = dimStyle.Render(v)
	}

	origin := "default"
	if present {
		origin = sm.origins[f.key]
	}
	tag := dimStyle.Render("  [" + origin + "]")
	if sm.overridden(f.key) {
		tag = warningStyle.Render("  [" + origin + "]")
	}
	return label + value + tag
}

// renderChoices renders the options with the active one highlighted.
func renderChoices(choices []string, current string) string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		if c == current {
			parts[i] = lipgloss.NewStyle().Bold(true).Foreground(colorPurple).Render("[" + c + "]")
		} else {
			parts[i] = dimStyle.Render(" " + c + " ")
		}
	}
	return strings.Join(parts, " ")
}
