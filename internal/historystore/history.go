// Package historystore implements the shell's command history: an
// in-memory ring with adjacent-duplicate suppression, plus persistence
// across sessions through an embedded blob store so history survives
// between runs instead of being read-only at startup.
package historystore

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	solodb "github.com/phillarmonic/SoloDB"
	"github.com/spf13/afero"
)

// farFuture is used as the blob expiry for history entries: essence
// does not want SoloDB's expiration GC to ever reclaim history.
var farFuture = func() time.Time { return time.Now().AddDate(100, 0, 0) }

// Store is the in-memory history ring plus its optional persisted
// backing store.
type Store struct {
	entries []string
	db      *solodb.DB
	count   int
	limit   int // 0 = unbounded, per config.yaml's history_limit
}

// SetLimit bounds the in-memory ring to at most n most-recent entries
// (config.yaml's history_limit; 0 or negative means unbounded). Already
// loaded entries beyond the new limit are dropped immediately.
func (s *Store) SetLimit(n int) {
	s.limit = n
	s.trim()
}

func (s *Store) trim() {
	if s.limit > 0 && len(s.entries) > s.limit {
		s.entries = s.entries[len(s.entries)-s.limit:]
	}
}

// Open loads history from the legacy plain-text $HOME/.history file (if
// present, merged once for backward compatibility) and from the
// persisted $HOME/.history.solo SoloDB store, returning a Store ready
// for interactive use. fs is used only for the legacy plain-text read,
// so callers can substitute an in-memory afero.Fs in tests.
func Open(fs afero.Fs, homeDir string) (*Store, error) {
	s := &Store{}

	if err := s.loadLegacy(fs, homeDir); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(homeDir, ".history.solo")
	if err := os.MkdirAll(homeDir, 0o755); err == nil {
		db, err := solodb.Open(solodb.Options{
			Path:       dbPath,
			Durability: solodb.SyncBatch,
		})
		if err == nil {
			s.db = db
			s.loadPersisted()
		}
	}

	return s, nil
}

func (s *Store) loadLegacy(fs afero.Fs, homeDir string) error {
	path := filepath.Join(homeDir, ".history")
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			s.appendRing(line)
		}
	}
	return nil
}

func (s *Store) loadPersisted() {
	countBytes, _, _, err := s.db.GetBlob("hist:count")
	if err != nil {
		return
	}
	var n int
	if countBytes != nil {
		data, _ := io.ReadAll(countBytes)
		countBytes.Close()
		fmt.Sscanf(string(data), "%d", &n)
	}
	for i := 0; i < n; i++ {
		rc, _, _, err := s.db.GetBlob(fmt.Sprintf("hist:%d", i))
		if err != nil {
			continue
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		s.appendRing(string(data))
	}
	s.count = n
}

// Append adds line to the ring, suppressing adjacent duplicates, and
// persists it.
func (s *Store) Append(line string) {
	if line == "" {
		return
	}
	if !s.appendRing(line) {
		return
	}
	s.trim()
	s.persist(line)
}

// appendRing applies adjacent-duplicate suppression and returns whether
// the line was actually appended.
func (s *Store) appendRing(line string) bool {
	if len(s.entries) > 0 && s.entries[len(s.entries)-1] == line {
		return false
	}
	s.entries = append(s.entries, line)
	return true
}

func (s *Store) persist(line string) {
	if s.db == nil {
		return
	}
	key := fmt.Sprintf("hist:%d", s.count)
	_ = s.db.SetBlob(key, bytes.NewReader([]byte(line)), int64(len(line)), farFuture())
	s.count++
	countStr := fmt.Sprintf("%d", s.count)
	_ = s.db.SetBlob("hist:count", bytes.NewReader([]byte(countStr)), int64(len(countStr)), farFuture())
}

// Len returns the number of entries in the ring.
func (s *Store) Len() int {
	return len(s.entries)
}

// At returns the entry at history_cursor distance back from the live
// line: 1 is the most recent entry, 2 the one before it, and so on.
// ok is false if history_cursor exceeds the ring.
func (s *Store) At(historyCursor int) (string, bool) {
	if historyCursor <= 0 || historyCursor > len(s.entries) {
		return "", false
	}
	return s.entries[len(s.entries)-historyCursor], true
}

// Close releases the persisted store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
