package modelfetch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// tempRecordSuffix marks in-flight status writes awaiting their rename.
const tempRecordSuffix = ".tmp"

// staleTempAge is how old a leftover temp artifact must be before a
// successful save may sweep it up.
const staleTempAge = time.Hour

// StatusStore provides durable, atomic persistence of download progress
// records. Every record is written to a uniquely named temp file in the
// store directory, forced to stable storage, and renamed onto the target
// path, so a reader never observes a partially written record. Writers are
// serialized; concurrent saves cannot clobber a newer record with an older
// one.
type StatusStore struct {
	// dir is the directory records are stored in.
	dir string

	// logger receives diagnostic messages. May be nil.
	logger Logger

	// mu serializes save operations.
	mu sync.Mutex
}

// NewStatusStore creates a store rooted at dir, creating it if needed.
// If dir is empty, the platform-appropriate default is used.
func NewStatusStore(dir string, logger Logger) (*StatusStore, error) {
	if dir == "" {
		def, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("%w: resolving state dir: %v", ErrStorageError, err)
		}
		dir = def
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating state dir: %v", ErrStorageError, err)
	}
	return &StatusStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory the store persists records in.
func (s *StatusStore) Dir() string {
	return s.dir
}

// Path returns the record path for a model id. Path separators in the id
// are flattened so the record filename stays flat within the store dir.
func (s *StatusStore) Path(modelID string) string {
	flat := strings.ReplaceAll(modelID, "/", "_")
	return filepath.Join(s.dir, flat+"_status.json")
}

// Save atomically persists rec, replacing any previous record for the same
// model. On failure the temp artifact is removed and the previous record is
// left intact.
func (s *StatusStore) Save(rec StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling record: %v", ErrStorageError, err)
	}

	target := s.Path(rec.ModelID)
	if err := s.atomicReplace(target, data); err != nil {
		return err
	}

	s.sweepStaleTemps()
	return nil
}

// atomicReplace writes data to a unique temp file beside target, forces it
// to stable storage, and renames it onto target. Every failure path removes
// the temp artifact.
func (s *StatusStore) atomicReplace(target string, data []byte) error {
	tmp := target + "." + uuid.NewString() + tempRecordSuffix

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: creating temp record: %v", ErrStorageError, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: writing temp record: %v", ErrStorageError, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: syncing temp record: %v", ErrStorageError, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: closing temp record: %v", ErrStorageError, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replacing record: %v", ErrStorageError, err)
	}
	return nil
}

// sweepStaleTemps removes temp artifacts left behind by interrupted writes.
// Best effort, off the critical path.
func (s *StatusStore) sweepStaleTemps() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-staleTempAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tempRecordSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}
}

// rawStatusRecord mirrors StatusRecord with pointer fields so that absent
// keys can be told apart from zero values during validation.
type rawStatusRecord struct {
	ModelID *string         `json:"model_id"`
	Files   []rawFileStatus `json:"files"`
}

type rawFileStatus struct {
	Filename       *string `json:"filename"`
	FileSize       *int64  `json:"file_size"`
	DownloadedSize *int64  `json:"downloaded_size"`
	Status         *string `json:"status"`
}

// Load reads the record for modelID, returning found=false when no usable
// record exists. The load fails closed: a record that does not parse or
// fails schema validation is deleted and reported not-found, so a corrupt
// record forces a fresh download instead of blocking restart.
func (s *StatusStore) Load(modelID string) (StatusRecord, bool) {
	path := s.Path(modelID)
	data, err := os.ReadFile(path)
	if err != nil {
		return StatusRecord{}, false
	}

	rec, ok := parseRecord(data)
	if !ok {
		if s.logger != nil {
			s.logger.Warn("removing invalid status record", "path", path)
		}
		os.Remove(path)
		return StatusRecord{}, false
	}
	return rec, true
}

// parseRecord parses and validates a serialized status record. A valid
// record is a top-level object carrying a model id and a files list whose
// entries each have all four required fields and a known status value.
func parseRecord(data []byte) (StatusRecord, bool) {
	var raw rawStatusRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return StatusRecord{}, false
	}
	if raw.ModelID == nil || *raw.ModelID == "" || raw.Files == nil {
		return StatusRecord{}, false
	}

	rec := StatusRecord{
		ModelID: *raw.ModelID,
		Files:   make([]FileStatus, 0, len(raw.Files)),
	}
	for _, rf := range raw.Files {
		if rf.Filename == nil || rf.FileSize == nil || rf.DownloadedSize == nil || rf.Status == nil {
			return StatusRecord{}, false
		}
		state := State(*rf.Status)
		if !validState(state) {
			return StatusRecord{}, false
		}
		rec.Files = append(rec.Files, FileStatus{
			Filename:       *rf.Filename,
			FileSize:       *rf.FileSize,
			DownloadedSize: *rf.DownloadedSize,
			Status:         state,
		})
	}
	return rec, true
}
