package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/promissory/core/promissory"
	dummydb "github.com/trezcool/promissory/storage/database/dummy"
)

func newStore(t *testing.T) (*DiskStore, string) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)

	root := filepath.Join(t.TempDir(), "uploads")
	store, err := NewDiskStore(root, dummydb.NewSequenceRepository(db))
	require.NoError(t, err)
	return store, root
}

func TestDiskStore_Save(t *testing.T) {
	store, root := newStore(t)
	ctx := context.Background()

	p1, err := store.Save(ctx, 3, promissory.CategoryReason, "PDF", strings.NewReader("one"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/student_3/reason_1.pdf", p1)

	p2, err := store.Save(ctx, 3, promissory.CategoryReason, "pdf", strings.NewReader("two"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/student_3/reason_2.pdf", p2)

	p3, err := store.Save(ctx, 3, promissory.CategoryValidID, "png", strings.NewReader("id"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/student_3/valid_id_1.png", p3)

	p4, err := store.Save(ctx, 4, promissory.CategoryReason, "pdf", strings.NewReader("other"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/student_4/reason_1.pdf", p4)

	content, err := os.ReadFile(filepath.Join(root, "student_3", "reason_2.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(content))

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Join(root, "student_3"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestDiskStore_Path(t *testing.T) {
	store, root := newStore(t)
	stored, err := store.Save(context.Background(), 1, promissory.CategoryValidID, "jpg", strings.NewReader("x"))
	require.NoError(t, err)

	full, err := store.Path(stored)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "student_1", "valid_id_1.jpg"), full)

	tests := []struct {
		name    string
		stored  string
		wantErr error
	}{
		{"missing file", "uploads/student_1/reason_9.pdf", promissory.ErrAttachmentNotFound},
		{"traversal", "uploads/../../etc/passwd", ErrInvalidPath},
		{"foreign prefix", "other/student_1/valid_id_1.jpg", ErrInvalidPath},
		{"empty", "", ErrInvalidPath},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Path(tc.stored)
			assert.Equal(t, tc.wantErr, err)
		})
	}
}

func TestDiskStore_Remove(t *testing.T) {
	store, _ := newStore(t)
	stored, err := store.Save(context.Background(), 1, promissory.CategoryReason, "pdf", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(stored))
	_, err = store.Path(stored)
	assert.Equal(t, promissory.ErrAttachmentNotFound, err)

	// removing twice is a no-op
	assert.NoError(t, store.Remove(stored))
}
