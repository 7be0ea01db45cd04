// Package ui provides the terminal front end.
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19player/internal/app/notification"
	"github.com/osa030/19player/internal/app/playback"
	"github.com/osa030/19player/internal/app/session"
	"github.com/osa030/19player/internal/domain/track"
)

const (
	// toastDuration is how long a toast stays on screen.
	toastDuration = 4 * time.Second
	// searchLimit caps the filtered track list.
	searchLimit = 200
	// streamBuffer is the notification buffer between the session and the UI.
	streamBuffer = 64
)

// notificationMsg carries one session notification.
type notificationMsg struct {
	n *notification.Notification
}

// sessionClosedMsg is sent once the session has shut down.
type sessionClosedMsg struct{}

// toastExpiredMsg clears the toast with the given id.
type toastExpiredMsg struct {
	id int
}

// loadResultMsg reports the outcome of a queue load.
type loadResultMsg struct {
	err error
}

// Model is the bubbletea model.
type Model struct {
	session *session.Manager
	stream  *notification.ChannelStream

	// Dimensions
	width  int
	height int

	// Playback snapshot, replaced by every notification
	view playback.View

	// Track list
	tracks []track.Track
	query  string
	cursor int
	offset int
	search searchInput

	toast   string
	toastID int

	styles styles
}

// NewModel creates a model bound to sess. The stream must be subscribed to
// the session's notification manager by the caller.
func NewModel(sess *session.Manager, stream *notification.ChannelStream) Model {
	return Model{
		session: sess,
		stream:  stream,
		width:   80,
		height:  24,
		view:    sess.Playback().View(),
		tracks:  sess.Library().Tracks(),
		search:  newSearchInput(),
		styles:  defaultStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.waitForNotification()
}

// waitForNotification returns a command that delivers the next notification.
func (m Model) waitForNotification() tea.Cmd {
	return func() tea.Msg {
		select {
		case n := <-m.stream.C():
			return notificationMsg{n: n}
		case <-m.session.Done():
			return sessionClosedMsg{}
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.scrollToCursor()
		return m, nil

	case notificationMsg:
		var cmd tea.Cmd
		if msg.n.View != nil {
			m.view = *msg.n.View
		}
		if msg.n.Type == notification.TypeToast {
			cmd = m.showToast(msg.n.Message)
		}
		return m, tea.Batch(cmd, m.waitForNotification())

	case toastExpiredMsg:
		if msg.id == m.toastID {
			m.toast = ""
		}
		return m, nil

	case loadResultMsg:
		if msg.err != nil {
			zlog.Warn().Msgf("ui: load failed: %v", msg.err)
			return m, m.showToast(loadErrorText(msg.err))
		}
		return m, nil

	case sessionClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// handleKey routes a key press to the search input, the track list or the
// playback controller.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	inTextInput := m.search.Focused
	if inTextInput {
		switch msg.Type {
		case tea.KeyEnter:
			m.search.Blur()
			m.applyFilter(m.search.Value)
		case tea.KeyEsc:
			m.search.Blur()
			m.search.Clear()
			m.applyFilter("")
		default:
			m.search = m.search.Update(msg)
		}
	} else {
		switch key {
		case "q":
			return m, tea.Quit
		case "/":
			m.search.Focus()
			return m, nil
		case "esc":
			if m.query != "" {
				m.search.Clear()
				m.applyFilter("")
			}
			return m, nil
		case "enter":
			return m, m.playSelected()
		case "j", "pgdown":
			m.moveCursor(1, key == "pgdown")
			return m, nil
		case "k", "pgup":
			m.moveCursor(-1, key == "pgup")
			return m, nil
		case "g", "home":
			m.cursor = 0
			m.scrollToCursor()
			return m, nil
		case "G", "end":
			m.cursor = len(m.tracks) - 1
			m.scrollToCursor()
			return m, nil
		}
	}

	k, ok := playback.ParseKey(key)
	if !ok {
		return m, nil
	}
	ctrl := m.session.Playback()
	// The controller may block on media I/O, so it never runs on the UI goroutine.
	return m, func() tea.Msg {
		ctrl.HandleKey(k, inTextInput)
		return nil
	}
}

// applyFilter replaces the track list with the search results for query.
func (m *Model) applyFilter(query string) {
	m.query = query
	lib := m.session.Library()
	if query == "" {
		m.tracks = lib.Tracks()
	} else {
		m.tracks = lib.Search(query, searchLimit)
	}
	m.cursor = 0
	m.offset = 0
}

// playSelected loads the visible list as the queue, starting at the cursor.
func (m Model) playSelected() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.tracks) {
		return nil
	}
	sess := m.session
	id := m.tracks[m.cursor].ID
	query := m.query
	return func() tea.Msg {
		if query == "" {
			return loadResultMsg{err: sess.PlayLibrary(id)}
		}
		return loadResultMsg{err: sess.PlaySearch(query, id)}
	}
}

func (m *Model) moveCursor(delta int, page bool) {
	if page {
		delta *= m.listHeight()
	}
	m.cursor += delta
	if m.cursor >= len(m.tracks) {
		m.cursor = len(m.tracks) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.scrollToCursor()
}

// scrollToCursor keeps the cursor inside the visible window.
func (m *Model) scrollToCursor() {
	if m.cursor < 0 {
		m.cursor = 0
	}
	height := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+height {
		m.offset = m.cursor - height + 1
	}
}

func (m *Model) showToast(text string) tea.Cmd {
	m.toastID++
	m.toast = text
	id := m.toastID
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func loadErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrEmptyContext):
		return "Nothing to play"
	case errors.Is(err, session.ErrTrackNotFound):
		return "Track is no longer in the library"
	default:
		return "Could not load queue"
	}
}

// Run starts the terminal UI and blocks until the user quits or the session closes.
func Run(sess *session.Manager) error {
	stream := notification.NewChannelStream(streamBuffer)
	notifManager := sess.GetNotificationManager()
	subscriptionID := notifManager.Subscribe(stream)
	defer func() {
		notifManager.Unsubscribe(subscriptionID)
		stream.Close()
	}()

	p := tea.NewProgram(NewModel(sess, stream), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "terminal ui failed")
	}
	return nil
}
