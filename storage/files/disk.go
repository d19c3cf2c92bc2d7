// Package files stores request attachments on the local disk.
package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/promissory/core/promissory"
)

var ErrInvalidPath = errors.New("invalid attachment path")

// Sequencer hands out the next file number of a student's category.
type Sequencer interface {
	NextUploadSequence(ctx context.Context, studentID int, category string) (int, error)
}

// DiskStore lays attachments out as `student_{id}/{category}_{n}.{ext}` under root.
// Stored paths are relative to root's parent (e.g. "uploads/student_3/reason_1.pdf").
type DiskStore struct {
	root string
	seq  Sequencer
}

var _ promissory.AttachmentStore = (*DiskStore)(nil) // interface compliance check

func NewDiskStore(root string, seq Sequencer) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &DiskStore{root: root, seq: seq}, nil
}

func (s *DiskStore) prefix() string { return filepath.Base(s.root) }

func (s *DiskStore) Save(ctx context.Context, studentID int, cat promissory.Category, ext string, r io.Reader) (string, error) {
	dir := filepath.Join(s.root, fmt.Sprintf("student_%d", studentID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating student dir")
	}

	tmp := filepath.Join(dir, "."+uuid.New().String()+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", errors.Wrap(err, "writing temp file")
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrap(err, "closing temp file")
	}

	n, err := s.seq.NextUploadSequence(ctx, studentID, string(cat))
	if err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrap(err, "assigning sequence")
	}
	name := fmt.Sprintf("%s_%d.%s", cat, n, strings.TrimPrefix(strings.ToLower(ext), "."))
	if err = os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", errors.Wrap(err, "moving upload into place")
	}
	return filepath.ToSlash(filepath.Join(s.prefix(), filepath.Base(dir), name)), nil
}

// Path resolves a stored path, refusing anything outside root.
func (s *DiskStore) Path(stored string) (string, error) {
	rel := strings.TrimPrefix(filepath.ToSlash(stored), s.prefix()+"/")
	if rel == "" || rel == stored || filepath.IsAbs(rel) {
		return "", ErrInvalidPath
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", promissory.ErrAttachmentNotFound
		}
		return "", errors.Wrap(err, "checking attachment")
	}
	return full, nil
}

func (s *DiskStore) Remove(stored string) error {
	full, err := s.Path(stored)
	if err != nil {
		if errors.Cause(err) == promissory.ErrAttachmentNotFound {
			return nil
		}
		return err
	}
	return errors.Wrap(os.Remove(full), "removing attachment")
}
