package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/promissory/core"
	"github.com/trezcool/promissory/core/audit"
	dummydb "github.com/trezcool/promissory/storage/database/dummy"
)

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	db, err := dummydb.Open()
	require.NoError(t, err)
	svc := audit.NewService(dummydb.NewAuditRepository(db))

	start := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	audit.NowFunc = func() time.Time {
		tick++
		return start.Add(time.Duration(tick) * time.Minute)
	}
	defer func() { audit.NowFunc = time.Now }()

	e, err := svc.Record(ctx, "", "Failed login attempt for x@example.com", audit.Failure)
	require.NoError(t, err)
	assert.Equal(t, audit.Anonymous, e.UserName)
	assert.Equal(t, audit.Failure, e.Outcome)

	for i := 0; i < 12; i++ {
		_, err = svc.Record(ctx, "Jane Doe", " Viewed dashboard ", audit.Success)
		require.NoError(t, err)
	}
	_, err = svc.Record(ctx, "John Roe", "Added new course 'BSIT'", audit.Success)
	require.NoError(t, err)

	entries, meta, err := svc.Query(ctx, audit.Filter{}, core.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 14, meta.Total)
	require.Len(t, entries, 10)
	assert.Equal(t, "John Roe", entries[0].UserName) // newest first

	tests := []struct {
		name   string
		filter audit.Filter
		want   int
	}{
		{"user substring", audit.Filter{User: "jane"}, 12},
		{"action substring", audit.Filter{Action: "COURSE"}, 1},
		{"both", audit.Filter{User: "roe", Action: "dashboard"}, 0},
		{"anonymous", audit.Filter{User: " anon "}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, meta, err := svc.Query(ctx, tt.filter, core.AllRows)
			require.NoError(t, err)
			assert.Equal(t, tt.want, meta.Total)
		})
	}

	entries, _, err = svc.Query(ctx, audit.Filter{User: "jane"}, core.NewPage(1, 1))
	require.NoError(t, err)
	assert.Equal(t, "Viewed dashboard", entries[0].Action)
}
