package history

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// every connection would get its own in-memory database
	db.SetMaxOpenConns(1)

	r, err := NewRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return r
}

func aJob() *Job {
	return &Job{Width: 384, Height: 120, Algorithm: "atkinson", Energy: 0x60}
}

func TestCreateAndGet(t *testing.T) {
	r := aRepository(t)
	j := aJob()

	require.NoError(t, r.Create(j))
	assert.NotZero(t, j.Id)
	assert.NotEqual(t, uuid.Nil, j.Uuid)
	assert.Equal(t, Pending, j.Status)

	got, err := r.Get(j.Uuid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, j.Uuid, got.Uuid)
	assert.Equal(t, 384, got.Width)
	assert.Equal(t, 120, got.Height)
	assert.Equal(t, "atkinson", got.Algorithm)
	assert.Equal(t, 0x60, got.Energy)
	assert.Equal(t, Pending, got.Status)
	assert.True(t, j.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.FinishedAt)
}

func TestGetMissing(t *testing.T) {
	r := aRepository(t)
	got, err := r.Get(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJobLifecycle(t *testing.T) {
	r := aRepository(t)
	ok, bad := aJob(), aJob()
	require.NoError(t, r.Create(ok))
	require.NoError(t, r.Create(bad))

	require.NoError(t, r.Start(ok.Uuid, "GB02"))
	got, err := r.Get(ok.Uuid)
	require.NoError(t, err)
	assert.Equal(t, Printing, got.Status)
	assert.Equal(t, "GB02", got.DeviceName)

	require.NoError(t, r.Finish(ok.Uuid, nil))
	require.NoError(t, r.Finish(bad.Uuid, errors.New("link to printer was lost")))

	got, err = r.Get(ok.Uuid)
	require.NoError(t, err)
	assert.Equal(t, Done, got.Status)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.After(got.CreatedAt))

	got, err = r.Get(bad.Uuid)
	require.NoError(t, err)
	assert.Equal(t, Failed, got.Status)
	assert.Equal(t, "link to printer was lost", got.Error)
}

func TestUpdateUnknownJob(t *testing.T) {
	r := aRepository(t)
	assert.ErrorIs(t, r.Start(uuid.New(), "GB02"), ErrJobNotFound)
	assert.ErrorIs(t, r.Finish(uuid.New(), nil), ErrJobNotFound)
}

func TestListNewestFirst(t *testing.T) {
	r := aRepository(t)
	var ids []uuid.UUID
	for range 5 {
		j := aJob()
		require.NoError(t, r.Create(j))
		ids = append(ids, j.Uuid)
	}

	jobs, err := r.List(3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[4], jobs[0].Uuid)
	assert.Equal(t, ids[3], jobs[1].Uuid)
	assert.Equal(t, ids[2], jobs[2].Uuid)
}

func TestListEmpty(t *testing.T) {
	r := aRepository(t)
	jobs, err := r.List(10)
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)
}

func TestInterrupted(t *testing.T) {
	r := aRepository(t)
	pending, printing, done := aJob(), aJob(), aJob()
	for _, j := range []*Job{pending, printing, done} {
		require.NoError(t, r.Create(j))
	}
	require.NoError(t, r.Start(printing.Uuid, "GB02"))
	require.NoError(t, r.Finish(done.Uuid, nil))

	n, err := r.Interrupted()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, j := range []*Job{pending, printing} {
		got, err := r.Get(j.Uuid)
		require.NoError(t, err)
		assert.Equal(t, Failed, got.Status)
		assert.Equal(t, "interrupted", got.Error)
	}
	got, err := r.Get(done.Uuid)
	require.NoError(t, err)
	assert.Equal(t, Done, got.Status)
}
