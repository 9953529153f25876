// Package storage provides persistent prediction history for the survival
// prediction service. It uses BoltDB as the underlying storage engine and
// offers thread-safe writes plus recent and time-range queries over the
// stored prediction records.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"titanic-predictor/internal/features"
)

const predictionsBucket = "predictions"

// PredictionRecord is one stored prediction: the named inputs, the model
// output, and the decision derived from it.
type PredictionRecord struct {
	ID           string                  `json:"id"`
	Input        features.PassengerInput `json:"input"`
	Probability  float64                 `json:"probability"`
	Survived     bool                    `json:"survived"`
	ModelVersion string                  `json:"model_version"`
	Ts           time.Time               `json:"ts"`
}

// Store provides persistent storage for prediction records using BoltDB.
type Store struct {
	db *bbolt.DB
}

// New creates a storage instance under the given data path. It opens the
// BoltDB database and creates the predictions bucket.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "predictions.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StorePrediction persists a prediction record. Keys are zero-padded
// timestamps plus the record ID, so a cursor scan walks records in time
// order.
func (s *Store) StorePrediction(rec PredictionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal prediction: %w", err)
		}

		key := recordKey(rec.Ts, rec.ID)
		return b.Put([]byte(key), data)
	})
}

// GetRecent returns up to limit records, newest first.
func (s *Store) GetRecent(limit int) ([]PredictionRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		c := b.Cursor()

		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// GetRange returns records within [start, end], oldest first.
func (s *Store) GetRange(start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		c := b.Cursor()

		startKey := []byte(recordKey(start, ""))
		endKey := []byte(recordKey(end, "\xff"))

		for k, v := c.Seek(startKey); k != nil && string(k) <= string(endKey); k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

func recordKey(ts time.Time, id string) string {
	return fmt.Sprintf("%020d_%s", ts.UnixNano(), id)
}
