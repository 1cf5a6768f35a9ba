package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"nodectl/internal/speedtest"
	"nodectl/internal/storage/models"
)

var speedTestPhases = []string{
	speedtest.PhaseMeta,
	speedtest.PhasePing,
	speedtest.PhaseDownload,
	speedtest.PhaseUpload,
}

type statusModel struct {
	width  int
	height int

	// Node paths.
	storageDir string
	dataDir    string
	dbPath     string

	lookup *models.IPLookup
	test   *models.SpeedTest

	resolving bool
	testing   bool
	phase     string
	bar       progress.Model
}

func newStatusModel(storageDir, dataDir, dbPath string) statusModel {
	return statusModel{
		storageDir: storageDir,
		dataDir:    dataDir,
		dbPath:     dbPath,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithoutPercentage(),
		),
	}
}

func (sm *statusModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
	sm.bar.Width = max(w/3, 10)
}

// phaseProgress returns the completed share of the speed test.
func (sm *statusModel) phaseProgress() float64 {
	for i, p := range speedTestPhases {
		if p == sm.phase {
			return float64(i) / float64(len(speedTestPhases))
		}
	}
	return 0
}

func (sm *statusModel) View(s spinner.Model) string {
	nodeCard := lipgloss.JoinVertical(lipgloss.Left,
		cardTitleStyle.Render("Node"),
		sm.row("Storage", sm.storageDir),
		sm.row("Data", sm.dataDir),
		sm.row("Database", sm.dbPath),
	)

	ipRows := []string{cardTitleStyle.Render("Public IP")}
	switch {
	case sm.resolving:
		ipRows = append(ipRows, s.View()+" Resolving...")
	case sm.lookup == nil:
		ipRows = append(ipRows, dimStyle.Render("Unknown - press 'i' to resolve"))
	default:
		ipRows = append(ipRows,
			sm.row("Address", sm.lookup.Address),
			sm.row("Service", sm.lookup.Service),
			sm.row("Elapsed", fmt.Sprintf("%d ms", sm.lookup.ElapsedMS)),
			sm.row("Resolved", sm.lookup.ResolvedAt.Local().Format(time.DateTime)),
		)
	}
	ipCard := lipgloss.JoinVertical(lipgloss.Left, ipRows...)

	testRows := []string{cardTitleStyle.Render("Speed Test")}
	switch {
	case sm.testing:
		testRows = append(testRows,
			fmt.Sprintf("%s Testing %s...", s.View(), sm.phase),
			sm.bar.ViewAs(sm.phaseProgress()),
		)
	case sm.test == nil:
		testRows = append(testRows, dimStyle.Render("No runs yet - press 's' to start"))
	case !sm.test.Success:
		testRows = append(testRows,
			sm.row("Status", warningStyle.Render("Failed")),
			sm.row("Error", truncate(sm.test.ErrorMessage, 60)),
			sm.row("Tested", sm.test.TestedAt.Local().Format(time.DateTime)),
		)
	default:
		testRows = append(testRows,
			sm.row("Latency", latencyStyle(sm.test.LatencyMS).Render(fmt.Sprintf("%.1f ms", sm.test.LatencyMS))+
				dimStyle.Render(fmt.Sprintf("  jitter %.1f ms", sm.test.JitterMS))),
			sm.row("Download", formatMbps(sm.test.DownloadBps)),
			sm.row("Upload", formatMbps(sm.test.UploadBps)),
			sm.row("Colo", sm.test.ServerColo),
			sm.row("Tested", sm.test.TestedAt.Local().Format(time.DateTime)),
		)
	}
	testCard := lipgloss.JoinVertical(lipgloss.Left, testRows...)

	w := max(sm.width-6, 30)
	top := cardStyle.Width(w).Render(nodeCard)

	// Side by side if wide enough.
	var bottom string
	if sm.width > 80 {
		halfW := (w - 4) / 2
		bottom = lipgloss.JoinHorizontal(lipgloss.Top,
			cardStyle.Width(halfW).Render(ipCard), "  ", cardStyle.Width(halfW).Render(testCard))
	} else {
		bottom = lipgloss.JoinVertical(lipgloss.Left,
			cardStyle.Width(w).Render(ipCard), cardStyle.Width(w).Render(testCard))
	}

	return forceHeight(lipgloss.JoinVertical(lipgloss.Left, top, bottom), sm.width, sm.height)
}

func (sm *statusModel) row(label, value string) string {
	return cardLabelStyle.Render(label+":") + " " + cardValueStyle.Render(value)
}

func formatMbps(bytesPerSecond float64) string {
	return fmt.Sprintf("%.2f Mbps", bytesPerSecond*8/1_000_000)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "~"
}
