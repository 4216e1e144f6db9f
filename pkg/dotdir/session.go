package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const sessionFile = "session.json"

// ChatSession is the state `memoir chat` keeps between runs so a user can
// resume the same conversation without passing --user every time.
type ChatSession struct {
	UserID   string    `json:"user_id"`
	LastUsed time.Time `json:"last_used"`
}

// LoadChatSession reads session.json from the target directory.
// Returns nil, nil when no session has been saved yet.
func (m *Manager) LoadChatSession(overrideDir string) (*ChatSession, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, sessionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading chat session: %w", err)
	}

	session := &ChatSession{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("parsing chat session: %w", err)
	}

	return session, nil
}

// SaveChatSession persists the session, stamping LastUsed.
func (m *Manager) SaveChatSession(session *ChatSession, overrideDir string) error {
	if session == nil || session.UserID == "" {
		return errors.New("cannot save chat session without a user id")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	session.LastUsed = time.Now().UTC()
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling chat session: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, sessionFile), data, 0o600); err != nil {
		return fmt.Errorf("writing chat session: %w", err)
	}

	return nil
}

// ClearChatSession removes session.json. Missing files are not an error.
func (m *Manager) ClearChatSession(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, sessionFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing chat session: %w", err)
	}

	return nil
}
