package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"toolshelf/internal/domain"
)

const (
	schemaVersion = 1

	rootBucketName  = "toolshelf"
	metaBucketName  = "meta"
	toolsBucketName = "tools"
	usageBucketName = "usage"
	versionKey      = "version"
	toolOrderKey    = "tool_order"
)

func ensureSchema(db *bolt.DB) error {
	return db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(rootBucketName))
		if err != nil {
			return fmt.Errorf("create root bucket: %w", err)
		}
		meta, err := root.CreateBucketIfNotExists([]byte(metaBucketName))
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		if _, err := root.CreateBucketIfNotExists([]byte(toolsBucketName)); err != nil {
			return fmt.Errorf("create tools bucket: %w", err)
		}
		if _, err := root.CreateBucketIfNotExists([]byte(usageBucketName)); err != nil {
			return fmt.Errorf("create usage bucket: %w", err)
		}

		currentVersion := readSchemaVersion(meta)
		switch {
		case currentVersion == 0:
			return writeSchemaVersion(meta, schemaVersion)
		case currentVersion > schemaVersion:
			return fmt.Errorf("%w: store written by schema %d, supported up to %d",
				domain.ErrUnsupportedSchema, currentVersion, schemaVersion)
		case currentVersion < schemaVersion:
			if err := migrateSchema(tx, currentVersion, schemaVersion); err != nil {
				return err
			}
			return writeSchemaVersion(meta, schemaVersion)
		default:
			return nil
		}
	})
}

func migrateSchema(_ *bolt.Tx, fromVersion, toVersion int) error {
	if fromVersion == toVersion {
		return nil
	}
	return fmt.Errorf("missing migration path from %d to %d", fromVersion, toVersion)
}

func readSchemaVersion(meta *bolt.Bucket) int {
	if meta == nil {
		return 0
	}
	raw := meta.Get([]byte(versionKey))
	if len(raw) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(raw))
}

func writeSchemaVersion(meta *bolt.Bucket, version int) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))
	return meta.Put([]byte(versionKey), buf)
}

func rootBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	root := tx.Bucket([]byte(rootBucketName))
	if root == nil {
		return nil, fmt.Errorf("missing root bucket")
	}
	return root, nil
}

func toolsBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	root, err := rootBucket(tx)
	if err != nil {
		return nil, err
	}
	bucket := root.Bucket([]byte(toolsBucketName))
	if bucket == nil {
		return nil, fmt.Errorf("missing tools bucket")
	}
	return bucket, nil
}

func usageBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	root, err := rootBucket(tx)
	if err != nil {
		return nil, err
	}
	bucket := root.Bucket([]byte(usageBucketName))
	if bucket == nil {
		return nil, fmt.Errorf("missing usage bucket")
	}
	return bucket, nil
}

func readToolOrder(tx *bolt.Tx) []string {
	root := tx.Bucket([]byte(rootBucketName))
	if root == nil {
		return nil
	}
	meta := root.Bucket([]byte(metaBucketName))
	if meta == nil {
		return nil
	}
	raw := meta.Get([]byte(toolOrderKey))
	if len(raw) == 0 {
		return nil
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil
	}
	return order
}

func writeToolOrder(tx *bolt.Tx, order []string) error {
	root, err := rootBucket(tx)
	if err != nil {
		return err
	}
	meta := root.Bucket([]byte(metaBucketName))
	if meta == nil {
		return fmt.Errorf("missing meta bucket")
	}
	raw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode tool order: %w", err)
	}
	return meta.Put([]byte(toolOrderKey), raw)
}
