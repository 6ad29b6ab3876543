package lockedstore

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/nghyane/authfailover/internal/authstore"
	authjson "github.com/nghyane/authfailover/internal/json"
)

// atomicWrite serializes store to a sibling temp file, fsyncs it, then
// renames it over the target path, so the store file always parses and a
// process killed mid-write never leaves a partial file behind.
func (s *Store) atomicWrite(store *authstore.Store) error {
	if store == nil {
		store = authstore.NewStore()
	}
	data, err := authjson.MarshalIndent(store, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := filepath.Join(dir, tmpFileName(filepath.Base(s.path)))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.path)
}

// tmpFileName builds a collision-proof temp-file name even under many
// concurrent writers targeting the same store path.
func tmpFileName(base string) string {
	return base + ".tmp." + uuid.NewString()
}
