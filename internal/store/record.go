package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	tgErrors "github.com/harunnryd/tollgate/internal/errors"

	"github.com/natefinch/atomic"
)

const recordExt = ".json"

// keySeparator never appears in a sanitized key component.
const keySeparator = "--"

var safeKey = regexp.MustCompile(`^[A-Za-z0-9._]([A-Za-z0-9._-]{0,62}[A-Za-z0-9._])?$`)

// Record is the on-disk form of one (session, handler) state entry.
type Record struct {
	SessionID string          `json:"session_id"`
	Handler   string          `json:"handler"`
	UpdatedAt time.Time       `json:"updated_at"`
	Data      json.RawMessage `json:"data"`
}

// Store keeps one small JSON record per (session, handler) pair. Every Save replaces the
// whole record through a temp file and rename, so readers see the old or the new record,
// never a partial one.
type Store struct {
	dir       string
	now       func() time.Time
	writeFile func(path string, r io.Reader) error
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, tgErrors.InvalidInput("state dir is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, tgErrors.WrapWithCategory(err, "create state dir", tgErrors.ErrStateIO)
	}
	return &Store{
		dir:       dir,
		now:       time.Now,
		writeFile: atomic.WriteFile,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// RecordPath is deterministic in the session id and handler name.
func (s *Store) RecordPath(sessionID, handler string) string {
	return filepath.Join(s.dir, recordKey(sessionID)+keySeparator+recordKey(handler)+recordExt)
}

func recordKey(part string) string {
	trimmed := strings.TrimSpace(part)
	if trimmed == "" {
		return "anonymous"
	}
	if safeKey.MatchString(trimmed) && !strings.Contains(trimmed, keySeparator) {
		return trimmed
	}
	sum := sha256.Sum256([]byte(trimmed))
	return "h" + hex.EncodeToString(sum[:8])
}

// Load decodes the record's data into v. A missing record yields ErrNotFound; an
// unreadable or corrupt one yields ErrStateIO. Callers treat both as empty state.
func (s *Store) Load(sessionID, handler string, v any) error {
	rec, err := s.readRecord(s.RecordPath(sessionID, handler))
	if err != nil {
		return err
	}
	if len(rec.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(rec.Data, v); err != nil {
		return tgErrors.WrapWithCategory(err, "decode state data", tgErrors.ErrStateIO)
	}
	return nil
}

// Save overwrites the record wholesale.
func (s *Store) Save(sessionID, handler string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return tgErrors.WrapWithCategory(err, "encode state data", tgErrors.ErrStateIO)
	}

	rec := Record{
		SessionID: sessionID,
		Handler:   handler,
		UpdatedAt: s.now().UTC(),
		Data:      data,
	}
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return tgErrors.WrapWithCategory(err, "encode state record", tgErrors.ErrStateIO)
	}

	path := s.RecordPath(sessionID, handler)
	if err := s.writeFile(path, bytes.NewReader(payload)); err != nil {
		return tgErrors.WrapWithCategory(err, "write state record "+filepath.Base(path), tgErrors.ErrStateIO)
	}
	return nil
}

// List returns every readable record for a session, ordered by handler name.
func (s *Store) List(sessionID string) ([]Record, error) {
	prefix := recordKey(sessionID) + keySeparator
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, tgErrors.WrapWithCategory(err, "read state dir", tgErrors.ErrStateIO)
	}

	var records []Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, recordExt) {
			continue
		}
		rec, err := s.readRecord(filepath.Join(s.dir, name))
		if err != nil {
			slog.Warn("Skipping unreadable state record", "file", name, "error", err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Handler < records[j].Handler
	})
	return records, nil
}

func (s *Store) readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, tgErrors.NotFound(fmt.Sprintf("state record %s", filepath.Base(path)))
	}
	if err != nil {
		return Record{}, tgErrors.WrapWithCategory(err, "read state record", tgErrors.ErrStateIO)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, tgErrors.WrapWithCategory(err, "decode state record", tgErrors.ErrStateIO)
	}
	return rec, nil
}
