package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"toolshelf/internal/domain"
)

// persistedUsage mirrors domain.UsageRecord with the timestamp serialized as
// RFC 3339 text, null when never used.
type persistedUsage struct {
	UsageCount int     `json:"usageCount"`
	LastUsed   *string `json:"lastUsed"`
}

// RecordUse increments the durable counter for id and stamps the current
// time, creating the counter at 1 when absent. Only the single usage record
// is written; the tool collection is untouched.
func (s *Store) RecordUse(id string) (domain.UsageRecord, error) {
	now := time.Now()
	var record domain.UsageRecord
	err := s.update(func(tx *bolt.Tx) error {
		bucket, err := usageBucket(tx)
		if err != nil {
			return err
		}
		record = decodeUsage(s.logger, id, bucket.Get([]byte(id)))
		record.UsageCount++
		record.LastUsed = now
		raw, err := encodeUsage(record)
		if err != nil {
			return fmt.Errorf("encode usage %s: %w", id, err)
		}
		return bucket.Put([]byte(id), raw)
	})
	if err != nil {
		return domain.UsageRecord{}, err
	}
	return record, nil
}

// Usage returns the full usage map keyed by tool id. Corrupt entries reset
// to zero rather than failing the read.
func (s *Store) Usage() (map[string]domain.UsageRecord, error) {
	usage := make(map[string]domain.UsageRecord)
	err := s.view(func(tx *bolt.Tx) error {
		bucket, err := usageBucket(tx)
		if err != nil {
			return err
		}
		return bucket.ForEach(func(key, value []byte) error {
			if value == nil {
				return nil
			}
			usage[string(key)] = decodeUsage(s.logger, string(key), value)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// ClearUsage removes every usage counter. Tool records are not affected.
func (s *Store) ClearUsage() error {
	return s.update(func(tx *bolt.Tx) error {
		bucket, err := usageBucket(tx)
		if err != nil {
			return err
		}
		return clearBucket(bucket)
	})
}

func encodeUsage(record domain.UsageRecord) ([]byte, error) {
	out := persistedUsage{UsageCount: record.UsageCount}
	if !record.LastUsed.IsZero() {
		stamp := record.LastUsed.UTC().Format(time.RFC3339Nano)
		out.LastUsed = &stamp
	}
	return json.Marshal(out)
}

func decodeUsage(logger *zap.Logger, id string, raw []byte) domain.UsageRecord {
	if len(raw) == 0 {
		return domain.UsageRecord{}
	}
	var record persistedUsage
	if err := json.Unmarshal(raw, &record); err != nil {
		logger.Warn("reset corrupt usage record", zap.String("id", id), zap.Error(err))
		return domain.UsageRecord{}
	}
	out := domain.UsageRecord{UsageCount: record.UsageCount}
	if record.LastUsed != nil && *record.LastUsed != "" {
		if lastUsed, err := time.Parse(time.RFC3339Nano, *record.LastUsed); err == nil {
			out.LastUsed = lastUsed
		} else {
			logger.Warn("reset corrupt usage timestamp", zap.String("id", id), zap.Error(err))
		}
	}
	if out.UsageCount < 0 {
		out.UsageCount = 0
	}
	return out
}
