// Package session keeps open workbooks for the HTTP operator surface.
//
// A session either edits the bundled workbook in place or works on a
// private copy of an uploaded file. Each session serialises access to its
// workbook; the copy of an upload is removed when the session is released.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidluisklein/wire-price-change/pkg/pricedit"
)

// ErrNotFound is returned for unknown or released session ids.
var ErrNotFound = errors.New("session not found")

// ErrUploadTooLarge is returned when an upload exceeds the configured limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// Source tells where a session's workbook came from.
type Source string

const (
	SourceBundled Source = "bundled"
	SourceUpload  Source = "upload"
)

// Observer is notified when sessions open and close.
type Observer interface {
	SessionOpened()
	SessionClosed()
}

type nopObserver struct{}

func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed() {}

// Info describes a session for API responses.
type Info struct {
	ID        string    `json:"id"`
	Source    Source    `json:"source"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Sheets    []string  `json:"sheets"`
}

// Session is one open workbook.
type Session struct {
	id      string
	source  Source
	name    string
	path    string
	created time.Time

	mu sync.Mutex
	wb *pricedit.Workbook
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Source returns where the workbook came from.
func (s *Session) Source() Source { return s.source }

// Do runs fn with exclusive access to the workbook.
func (s *Session) Do(fn func(wb *pricedit.Workbook) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wb == nil {
		return ErrNotFound
	}
	return fn(s.wb)
}

// Info returns a description of the session.
func (s *Session) Info() Info {
	info := Info{ID: s.id, Source: s.source, Name: s.name, CreatedAt: s.created}
	_ = s.Do(func(wb *pricedit.Workbook) error {
		info.Sheets = wb.SheetNames()
		return nil
	})
	return info
}

func (s *Session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wb == nil {
		return nil
	}
	err := s.wb.Close()
	s.wb = nil
	if s.source == SourceUpload {
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}

// Options configures a Manager.
type Options struct {
	// BundledPath is the workbook used when no file is uploaded.
	BundledPath string
	// Dir holds upload copies. Empty means os.TempDir().
	Dir string
	// MaxUploadBytes caps an upload. Zero means unlimited.
	MaxUploadBytes int64
	Logger         *slog.Logger
	Observer       Observer
}

// Manager owns the open sessions.
type Manager struct {
	opts     Options
	logger   *slog.Logger
	observer Observer

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Manager{
		opts:     opts,
		logger:   logger.With(slog.String("component", "session")),
		observer: observer,
		sessions: make(map[string]*Session),
	}
}

// OpenBundled opens the bundled workbook. Saves write back to it.
func (m *Manager) OpenBundled() (*Session, error) {
	if m.opts.BundledPath == "" {
		return nil, &pricedit.LoadError{Source: "bundled", Err: pricedit.ErrFileNotFound}
	}
	wb, err := pricedit.Open(m.opts.BundledPath)
	if err != nil {
		return nil, err
	}
	return m.register(SourceBundled, filepath.Base(m.opts.BundledPath), m.opts.BundledPath, wb), nil
}

// OpenUpload copies r into the session directory and opens the copy.
func (m *Manager) OpenUpload(name string, r io.Reader) (*Session, error) {
	dir := m.opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(dir, "session-"+id+".xlsx")
	if err := m.copyUpload(path, r); err != nil {
		os.Remove(path)
		return nil, err
	}

	wb, err := pricedit.Open(path)
	if err != nil {
		os.Remove(path)
		var loadErr *pricedit.LoadError
		if errors.As(err, &loadErr) {
			loadErr.Source = name
		}
		return nil, err
	}
	return m.registerID(id, SourceUpload, name, path, wb), nil
}

func (m *Manager) copyUpload(path string, r io.Reader) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create session copy: %w", err)
	}

	src := r
	if m.opts.MaxUploadBytes > 0 {
		src = io.LimitReader(r, m.opts.MaxUploadBytes+1)
	}
	n, err := io.Copy(file, src)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write session copy: %w", err)
	}
	if m.opts.MaxUploadBytes > 0 && n > m.opts.MaxUploadBytes {
		return ErrUploadTooLarge
	}
	return nil
}

func (m *Manager) register(source Source, name, path string, wb *pricedit.Workbook) *Session {
	return m.registerID(uuid.NewString(), source, name, path, wb)
}

func (m *Manager) registerID(id string, source Source, name, path string, wb *pricedit.Workbook) *Session {
	s := &Session{
		id:      id,
		source:  source,
		name:    name,
		path:    path,
		created: time.Now(),
		wb:      wb,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.observer.SessionOpened()
	m.logger.Info("Session opened",
		slog.String("session_id", id),
		slog.String("source", string(source)),
		slog.String("name", name))
	return s
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns the open sessions ordered by creation time.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].created.Before(out[j].created)
	})
	return out
}

// Release closes the session and removes its upload copy.
func (m *Manager) Release(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	m.observer.SessionClosed()
	if err := s.close(); err != nil {
		m.logger.Warn("Failed to release session",
			slog.String("session_id", id),
			slog.String("error", err.Error()))
		return err
	}
	m.logger.Info("Session released", slog.String("session_id", id))
	return nil
}

// Close releases every session.
func (m *Manager) Close() error {
	var errs []error
	for _, s := range m.List() {
		if err := m.Release(s.id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
