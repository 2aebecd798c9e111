package tcp

import (
	"log/slog"
	"sort"
	"sync"

	"robotbridge/internal/logsink"
)

// SessionManager tracks open sessions and the attached log sessions. Task
// connections are admitted while at least one log session is attached; the most
// recently attached one holds the log sink.
type SessionManager struct {
	sessions map[string]*Session
	// key: session ID

	mu       sync.RWMutex
	logOrder []string // attached log session ids, oldest first; the last one is the sink
	logger   *slog.Logger
}

func NewSessionManager(logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

func (m *SessionManager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	m.logger.Info("session_added",
		"session_id", s.ID,
		"kind", s.Kind.String(),
		"remote_addr", s.Remote,
	)
}

func (m *SessionManager) Remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.ID)
	m.logger.Info("session_removed",
		"session_id", s.ID,
		"kind", s.Kind.String(),
	)
}

// SetLogSession marks id as attached and makes it the current log session.
func (m *SessionManager) SetLogSession(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushLog(id)
}

// ClearLogSession marks id as detached and reports whether it was the current
// log session. The gate stays open while other log sessions remain.
func (m *SessionManager) ClearLogSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropLog(id)
}

// AttachLog registers s as attached and installs it as the sink of sw. Both
// happen under the manager lock so the gate and the sink never disagree.
func (m *SessionManager) AttachLog(s *Session, sw *logsink.Switch) (previous string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous = m.currentLog()
	m.pushLog(s.ID)
	sw.Attach(s)
	return previous
}

// DetachLog unregisters s. When s held the sink, the most recently attached
// remaining log session takes it over, or sw falls back to Nop when none is left.
// It returns the id of the session now holding the sink, "" when none.
func (m *SessionManager) DetachLog(s *Session, sw *logsink.Switch) (next string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dropLog(s.ID) {
		return m.currentLog()
	}
	for len(m.logOrder) > 0 {
		id := m.currentLog()
		if successor, ok := m.sessions[id]; ok {
			sw.Attach(successor)
			return id
		}
		m.logOrder = m.logOrder[:len(m.logOrder)-1]
	}
	sw.Detach(s)
	return ""
}

func (m *SessionManager) LogAttached() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logOrder) > 0
}

// LogSession returns the id of the session holding the sink.
func (m *SessionManager) LogSession() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentLog()
}

// LogCount is the number of attached log sessions.
func (m *SessionManager) LogCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logOrder)
}

// callers hold m.mu
func (m *SessionManager) currentLog() string {
	if len(m.logOrder) == 0 {
		return ""
	}
	return m.logOrder[len(m.logOrder)-1]
}

func (m *SessionManager) pushLog(id string) {
	m.removeLog(id)
	m.logOrder = append(m.logOrder, id)
}

// dropLog removes id and reports whether it was the current log session.
func (m *SessionManager) dropLog(id string) bool {
	wasCurrent := id != "" && m.currentLog() == id
	m.removeLog(id)
	return wasCurrent
}

func (m *SessionManager) removeLog(id string) {
	for i, v := range m.logOrder {
		if v == id {
			m.logOrder = append(m.logOrder[:i], m.logOrder[i+1:]...)
			return
		}
	}
}

// Sessions returns a snapshot ordered by connect time.
func (m *SessionManager) Sessions() []SessionInfo {
	m.mu.RLock()
	sink := m.currentLog()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		info := s.Info()
		info.LogSink = s.Kind == KindLog && s.ID == sink
		out = append(out, info)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every session socket. Handlers notice and remove themselves.
func (m *SessionManager) CloseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, s := range m.sessions {
		s.Close()
		m.logger.Info("session_closed", "session_id", id)
	}
}
