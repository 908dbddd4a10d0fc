package tui

import (
	"fmt"
	"strings"

	"airwave/model"
	"airwave/player"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ViewMode selects which subset of the library the list shows.
type ViewMode int

const (
	ViewAll ViewMode = iota
	ViewFavorites
)

// KeyMap defines the keyboard bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Toggle   key.Binding
	Next     key.Binding
	Previous key.Binding
	Stop     key.Binding
	Random   key.Binding
	Favorite key.Binding
	FavView  key.Binding
	VolUp    key.Binding
	VolDown  key.Binding
	Quit     key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Toggle, k.Next, k.VolUp, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Toggle, k.Stop},
		{k.Next, k.Previous, k.Random, k.Favorite, k.FavView},
		{k.VolUp, k.VolDown, k.Quit},
	}
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "play"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("Space", "pause/resume"),
	),
	Next: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "next"),
	),
	Previous: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "previous"),
	),
	Stop: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "stop"),
	),
	Random: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "random mode"),
	),
	Favorite: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "favorite"),
	),
	FavView: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("Tab", "favorites view"),
	),
	VolUp: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "vol+"),
	),
	VolDown: key.NewBinding(
		key.WithKeys("-", "_"),
		key.WithHelp("-", "vol-"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q", "esc"),
		key.WithHelp("q", "quit"),
	),
}

var (
	primaryColor = lipgloss.Color("#7C3AED")
	accentColor  = lipgloss.Color("#F59E0B")
	textColor    = lipgloss.Color("#CDD6F4")
	dimTextColor = lipgloss.Color("#6C7086")
	playingColor = lipgloss.Color("#A6E3A1")
	errorColor   = lipgloss.Color("#F38BA8")

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	stationItemStyle = lipgloss.NewStyle().
				Foreground(textColor)

	stationSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1E1E2E")).
				Background(primaryColor).
				Bold(true).
				Padding(0, 1)

	stationPlayingStyle = lipgloss.NewStyle().
				Foreground(playingColor).
				Bold(true)

	stationSelectedPlayingStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("#1E1E2E")).
					Background(playingColor).
					Bold(true).
					Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(dimTextColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	volumeStyle = lipgloss.NewStyle().
			Foreground(accentColor)
)

// Transport is the slice of the controller the UI drives.
type Transport interface {
	PlayStation(model.Station)
	Toggle()
	Next() error
	Previous() error
	ClearCurrentTrack()
	SetVolume(float64)
	Volume() float64
	SetRandomMode(bool)
	RandomMode() bool
	SetStations([]model.Station)
	Snapshot() player.Snapshot
	Subscribe() *player.Subscription
}

// Coordinator messages are forwarded when the terminal gains or loses
// focus, so call-style interruptions work in a terminal too.
type SignalSink func(player.Signal)

// Model is the bubbletea model for the station browser.
type Model struct {
	transport Transport
	library   *model.Library
	signals   SignalSink
	sub       *player.Subscription

	stations []model.Station
	cursor   int
	view     ViewMode
	width    int
	height   int
	keys     KeyMap

	snapshot     player.Snapshot
	errorMessage string
}

func NewModel(transport Transport, library *model.Library, signals SignalSink) Model {
	m := Model{
		transport: transport,
		library:   library,
		signals:   signals,
		keys:      DefaultKeyMap,
		snapshot:  transport.Snapshot(),
	}
	m.reloadStations()
	return m
}

func (m *Model) reloadStations() {
	if m.view == ViewFavorites {
		m.stations = m.library.Favorites()
	} else {
		m.stations = m.library.Stations()
	}
	if m.cursor >= len(m.stations) {
		m.cursor = len(m.stations) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.transport.SetStations(m.stations)
}

type stateMsg player.Snapshot
type failureMsg player.FailureReport
type subClosedMsg struct{}

// listen turns subscription events into bubbletea messages, one at a
// time, re-arming itself after each delivery.
func (m Model) listen() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		select {
		case snap := <-sub.State():
			return stateMsg(snap)
		case report := <-sub.Failures():
			return failureMsg(report)
		case <-sub.Done():
			return subClosedMsg{}
		}
	}
}

func (m Model) Init() tea.Cmd {
	if m.sub == nil {
		return nil
	}
	return m.listen()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.FocusMsg:
		if m.signals != nil {
			m.signals(player.Signal{Kind: player.SignalFocusGained})
		}
		return m, nil

	case tea.BlurMsg:
		if m.signals != nil {
			m.signals(player.Signal{Kind: player.SignalFocusLost})
		}
		return m, nil

	case stateMsg:
		m.snapshot = player.Snapshot(msg)
		return m, m.listen()

	case failureMsg:
		name := "stream"
		if msg.Station != nil {
			name = msg.Station.Name
		}
		m.errorMessage = fmt.Sprintf("%s failed: %s", name, msg.Class)
		return m, m.listen()

	case subClosedMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m, nil
}

func (m Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.errorMessage = ""

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.stations)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.cursor < len(m.stations) {
			m.transport.PlayStation(m.stations[m.cursor])
		}
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		m.transport.Toggle()
		return m, nil

	case key.Matches(msg, m.keys.Next):
		if err := m.transport.Next(); err != nil {
			m.errorMessage = err.Error()
		}
		return m, nil

	case key.Matches(msg, m.keys.Previous):
		if err := m.transport.Previous(); err != nil {
			m.errorMessage = err.Error()
		}
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		m.transport.ClearCurrentTrack()
		return m, nil

	case key.Matches(msg, m.keys.Random):
		m.transport.SetRandomMode(!m.transport.RandomMode())
		return m, nil

	case key.Matches(msg, m.keys.Favorite):
		if m.cursor < len(m.stations) {
			m.library.ToggleFavorite(m.stations[m.cursor].URL)
			m.reloadStations()
		}
		return m, nil

	case key.Matches(msg, m.keys.FavView):
		if m.view == ViewAll {
			m.view = ViewFavorites
		} else {
			m.view = ViewAll
		}
		m.cursor = 0
		m.reloadStations()
		return m, nil

	case key.Matches(msg, m.keys.VolUp):
		m.transport.SetVolume(m.transport.Volume() + 0.05)
		return m, nil

	case key.Matches(msg, m.keys.VolDown):
		m.transport.SetVolume(m.transport.Volume() - 0.05)
		return m, nil

	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	// Digit keys jump the volume directly.
	case msg.String() >= "0" && msg.String() <= "9":
		m.transport.SetVolume(float64(msg.String()[0]-'0') / 10.0)
		return m, nil
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	title := titleStyle.Render("📻 airwave")
	if m.view == ViewFavorites {
		title += statusStyle.Render("  [favorites]")
	}
	b.WriteString(fmt.Sprintf("%s  %s\n", title, m.renderVolume()))
	b.WriteString(strings.Repeat("─", 44) + "\n")

	b.WriteString(m.renderStationList())

	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render("↑↓ select  Enter play  Space pause  n/p skip  r random  f ♥  Tab view  q quit"))

	return b.String()
}

func (m Model) renderVolume() string {
	vol := int(m.transport.Volume()*100 + 0.5)
	mode := ""
	if m.snapshot.RandomMode {
		mode = " 🔀"
	}
	return volumeStyle.Render(fmt.Sprintf("🔊 %d%%%s", vol, mode))
}

func (m Model) renderStatusLine() string {
	if m.errorMessage != "" {
		return errorStyle.Render("✗ " + m.errorMessage)
	}

	snap := m.snapshot
	if snap.Station == nil {
		return statusStyle.Render("stopped")
	}

	label := snap.Station.Name
	if snap.StreamTitle != "" {
		label = fmt.Sprintf("%s — %s", snap.Station.Name, snap.StreamTitle)
	}
	switch {
	case snap.IsLoading:
		return statusStyle.Render("⏳ connecting: " + label)
	case snap.IsPlaying:
		return statusStyle.Render("▶ " + label)
	default:
		return statusStyle.Render("⏸ " + label)
	}
}

func (m Model) renderStationList() string {
	if len(m.stations) == 0 {
		return statusStyle.Render("  no stations") + "\n"
	}

	var lines []string

	maxVisible := 12
	if m.height > 0 {
		maxVisible = m.height - 6
		if maxVisible < 5 {
			maxVisible = 5
		}
	}
	if maxVisible > len(m.stations) {
		maxVisible = len(m.stations)
	}

	startIdx := 0
	if m.cursor >= maxVisible {
		startIdx = m.cursor - maxVisible + 1
	}
	endIdx := startIdx + maxVisible
	if endIdx > len(m.stations) {
		endIdx = len(m.stations)
		startIdx = endIdx - maxVisible
		if startIdx < 0 {
			startIdx = 0
		}
	}

	if startIdx > 0 {
		lines = append(lines, statusStyle.Render("  ↑ more"))
	}

	playingURL := ""
	if m.snapshot.Station != nil {
		playingURL = m.snapshot.Station.URL
	}

	for i := startIdx; i < endIdx; i++ {
		station := m.stations[i]
		isSelected := i == m.cursor
		isPlaying := station.URL == playingURL

		prefix := "  "
		if isPlaying {
			prefix = "▶ "
		}
		suffix := ""
		if station.IsFavorite {
			suffix = " ♥"
		}

		text := fmt.Sprintf("%s%s%s", prefix, station.Name, suffix)

		var styled string
		switch {
		case isSelected && isPlaying:
			styled = stationSelectedPlayingStyle.Render(text)
		case isSelected:
			styled = stationSelectedStyle.Render(text)
		case isPlaying:
			styled = stationPlayingStyle.Render(text)
		default:
			styled = stationItemStyle.Render(text)
		}
		lines = append(lines, styled)
	}

	if endIdx < len(m.stations) {
		lines = append(lines, statusStyle.Render("  ↓ more"))
	}

	return strings.Join(lines, "\n") + "\n"
}

// Run starts the station browser and blocks until the user quits.
func Run(transport Transport, library *model.Library, signals SignalSink) error {
	m := NewModel(transport, library, signals)
	m.sub = transport.Subscribe()
	defer m.sub.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	_, err := p.Run()
	return err
}
