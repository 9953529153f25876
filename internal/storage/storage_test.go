package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titanic-predictor/internal/features"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id string, ts time.Time, prob float64) PredictionRecord {
	age := 30.0
	return PredictionRecord{
		ID:           id,
		Input:        features.PassengerInput{Pclass: 3, Sex: 0, Age: &age},
		Probability:  prob,
		Survived:     prob >= 0.5,
		ModelVersion: "test",
		Ts:           ts,
	}
}

func TestStore_StoreAndGetRecent(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := testRecord(fmt.Sprintf("rec-%d", i), base.Add(time.Duration(i)*time.Second), 0.1*float64(i))
		require.NoError(t, store.StorePrediction(rec))
	}

	records, err := store.GetRecent(3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	assert.Equal(t, "rec-4", records[0].ID)
	assert.Equal(t, "rec-3", records[1].ID)
	assert.Equal(t, "rec-2", records[2].ID)
}

func TestStore_GetRecentFewerThanLimit(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.StorePrediction(testRecord("only", time.Now().UTC(), 0.9)))

	records, err := store.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "only", records[0].ID)
	assert.True(t, records[0].Survived)
	require.NotNil(t, records[0].Input.Age)
	assert.Equal(t, 30.0, *records[0].Input.Age)
}

func TestStore_GetRange(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		rec := testRecord(fmt.Sprintf("rec-%d", i), base.Add(time.Duration(i)*time.Hour), 0.5)
		require.NoError(t, store.StorePrediction(rec))
	}

	records, err := store.GetRange(base.Add(2*time.Hour), base.Add(5*time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 4)

	// Oldest first within the range.
	assert.Equal(t, "rec-2", records[0].ID)
	assert.Equal(t, "rec-5", records[3].ID)
}

func TestStore_GetRecentZeroLimit(t *testing.T) {
	store := newTestStore(t)

	records, err := store.GetRecent(0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	store, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, store.StorePrediction(testRecord("persisted", time.Now().UTC(), 0.3)))
	require.NoError(t, store.Close())

	reopened, err := New(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.GetRecent(1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persisted", records[0].ID)
}
