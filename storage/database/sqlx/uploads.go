package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type uploadSequenceRepository struct {
	db *sqlx.DB
}

func NewUploadSequenceRepository(db *sqlx.DB) *uploadSequenceRepository {
	return &uploadSequenceRepository{db: db}
}

// NextUploadSequence atomically increments and returns the student's counter for the category (first value: 1).
func (repo uploadSequenceRepository) NextUploadSequence(ctx context.Context, studentID int, category string) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n, `INSERT INTO upload_sequence (student_id, category, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (student_id, category) DO UPDATE SET last_value = upload_sequence.last_value + 1
		RETURNING last_value`,
		studentID, category)
	return n, errors.Wrap(err, "incrementing upload sequence")
}
