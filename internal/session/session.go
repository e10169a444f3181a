package session

import "sync"

type Session struct {
	ActiveBoardID int64
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
	}
}

func (m *Manager) Get(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[userID]
	if s == nil {
		s = &Session{}
		m.sessions[userID] = s
	}
	return s
}

// ForgetBoard clears the board from every session, e.g. after it was deleted.
func (m *Manager) ForgetBoard(boardID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		if s.ActiveBoardID == boardID {
			s.ActiveBoardID = 0
		}
	}
}
