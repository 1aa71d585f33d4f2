package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/boltdb/bolt"

	"dev.rubentxu.devops-platform/server-manager/internal/ports"
)

// BoltDBStore implementa ports.Store utilizando BoltDB como backend y
// genéricos. Los valores se serializan a JSON.
type BoltDBStore[T any] struct {
	db         *bolt.DB
	bucketName []byte
}

// NewBoltDBStore abre (o crea) la base de datos en filename y asegura que
// el bucket exista.
func NewBoltDBStore[T any](filename string, mode os.FileMode, bucketName string) (*BoltDBStore[T], error) {
	db, err := bolt.Open(filename, mode, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating bucket: %v", err)
	}

	return &BoltDBStore[T]{
		db:         db,
		bucketName: []byte(bucketName),
	}, nil
}

func (s *BoltDBStore[T]) Put(key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error serializing value: %v", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		return bucket.Put([]byte(key), data)
	})
}

func (s *BoltDBStore[T]) Get(key string) (T, error) {
	var result T
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		data := bucket.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%w: %s", ports.ErrKeyNotFound, key)
		}
		return json.Unmarshal(data, &result)
	})
	return result, err
}

func (s *BoltDBStore[T]) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		return bucket.Delete([]byte(key))
	})
}

func (s *BoltDBStore[T]) List() ([]T, error) {
	var results []T
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			var result T
			if err := json.Unmarshal(v, &result); err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	return results, err
}

func (s *BoltDBStore[T]) Close() error {
	return s.db.Close()
}
