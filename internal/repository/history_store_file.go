package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// replaceFile swaps tmp into place in one step; afs's Move removes the
// destination before renaming.
var replaceFile = os.Rename

type fileHistoryStore struct {
	fs   afs.Service
	path string
}

// NewFileHistoryStore keeps the history as a JSON array of identifiers.
// Writes go to a sibling temp file that is renamed over the target, so the
// previous history stays intact until the new one is complete.
func NewFileHistoryStore(fs afs.Service, path string) (HistoryStore, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("history path %s: %w", path, err)
	}
	return &fileHistoryStore{fs: fs, path: abs}, nil
}

func (s *fileHistoryStore) Load(ctx context.Context) ([]string, error) {
	exists, err := s.fs.Exists(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("check history %s: %w", s.path, err)
	}
	if !exists {
		return nil, ErrHistoryNotFound
	}

	data, err := s.fs.DownloadWithURL(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", s.path, err)
	}
	return ids, nil
}

func (s *fileHistoryStore) Save(ctx context.Context, history []string, _ []string) error {
	sorted := slices.Clone(history)
	slices.Sort(sorted)
	if sorted == nil {
		sorted = []string{}
	}

	data, err := json.Marshal(sorted)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	dir := filepath.Dir(s.path)
	exists, err := s.fs.Exists(ctx, dir)
	if err != nil {
		return fmt.Errorf("check history dir %s: %w", dir, err)
	}
	if !exists {
		if err := s.fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return fmt.Errorf("create history dir %s: %w", dir, err)
		}
	}

	tmp := s.tempPath()
	if err := s.fs.Upload(ctx, tmp, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write history %s: %w", tmp, err)
	}
	if err := replaceFile(tmp, s.path); err != nil {
		_ = s.fs.Delete(context.WithoutCancel(ctx), tmp)
		return fmt.Errorf("replace history %s: %w", s.path, err)
	}
	return nil
}

// tempPath keeps the target's extension: .<name>-<uuid><ext>.
func (s *fileHistoryStore) tempPath() string {
	base := filepath.Base(s.path)
	ext := filepath.Ext(base)
	name := "." + base[:len(base)-len(ext)] + "-" + uuid.NewString() + ext
	return filepath.Join(filepath.Dir(s.path), name)
}
