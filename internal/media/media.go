// Package media implements the two-phase upload store: attachments are
// staged under a temp directory while the conversation runs, then promoted
// into a per-complaint directory at submission with a rename, so a reader
// never sees a half-written file under a complaint.
package media

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// tempDirName is the staging area under the uploads root.
const tempDirName = "temp"

// Store manages the uploads directory tree.
type Store struct {
	root    string
	maxSize int64 // bytes; 0 disables the limit
	now     func() time.Time
}

// NewStore creates a Store rooted at dir, creating the staging area.
func NewStore(dir string, maxSizeMB int) (*Store, error) {
	st := &Store{
		root:    dir,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		now:     time.Now,
	}
	if err := os.MkdirAll(st.tempDir(), 0o755); err != nil {
		return nil, fmt.Errorf("media: create staging dir: %w", err)
	}
	return st, nil
}

func (st *Store) tempDir() string {
	return filepath.Join(st.root, tempDirName)
}

// Stage writes bytes into the staging area and returns the staged filename.
func (st *Store) Stage(data []byte, ext string) (string, error) {
	if st.maxSize > 0 && int64(len(data)) > st.maxSize {
		return "", fmt.Errorf("media: file of %d bytes exceeds limit", len(data))
	}
	name := fmt.Sprintf("temp_%d_%s%s", st.now().UnixMilli(), randSuffix(), ext)
	if err := os.WriteFile(filepath.Join(st.tempDir(), name), data, 0o644); err != nil {
		return "", fmt.Errorf("media: stage file: %w", err)
	}
	return name, nil
}

// Promote moves a staged file into the complaint's directory and returns
// the permanent filename and its public /uploads path. The move is a
// rename, never a copy, so it is atomic on the same filesystem.
func (st *Store) Promote(stagedRef, complaintID, prefix string) (filename, publicPath string, err error) {
	dir := filepath.Join(st.root, complaintID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("media: create complaint dir: %w", err)
	}
	filename = fmt.Sprintf("%s_%d_%s%s", prefix, st.now().UnixMilli(), randSuffix(), filepath.Ext(stagedRef))
	src := filepath.Join(st.tempDir(), stagedRef)
	if err := os.Rename(src, filepath.Join(dir, filename)); err != nil {
		return "", "", fmt.Errorf("media: promote %s: %w", stagedRef, err)
	}
	return filename, fmt.Sprintf("/uploads/%s/%s", complaintID, filename), nil
}

// Demote moves a promoted file back into the staging area under its original
// staged name, undoing a Promote when the submission that triggered it fails.
func (st *Store) Demote(complaintID, filename, stagedRef string) error {
	src := filepath.Join(st.root, complaintID, filename)
	if err := os.Rename(src, filepath.Join(st.tempDir(), stagedRef)); err != nil {
		return fmt.Errorf("media: demote %s: %w", filename, err)
	}
	os.Remove(filepath.Join(st.root, complaintID)) // drop the dir if now empty
	return nil
}

// Discard removes a staged file that will not be promoted (best-effort).
func (st *Store) Discard(stagedRef string) {
	os.Remove(filepath.Join(st.tempDir(), stagedRef))
}

// SweepTemp removes staged files older than maxAge and returns how many
// were deleted. Runs on a cron schedule, independent of traffic.
func (st *Store) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(st.tempDir())
	if err != nil {
		return 0, fmt.Errorf("media: read staging dir: %w", err)
	}
	cutoff := st.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(st.tempDir(), e.Name())) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Root returns the uploads root directory, for static file serving.
func (st *Store) Root() string { return st.root }

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randSuffix() string {
	b := make([]byte, 9)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}
