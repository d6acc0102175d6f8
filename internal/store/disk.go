// Package store keeps the readings received by the display on disk.
package store

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/dgraph-io/badger"
)

var ErrEmptyTopic = errors.New("empty topic")

// Store is a badger backed history of readings, ordered by topic and arrival time.
//
// Keys are "r" | u16 topic length | topic | u64 unix nanoseconds, values are the raw payloads.
type Store struct {
	db *badger.DB
}

func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions
	opts.Dir, opts.ValueDir = dir, dir
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save records payload as received on topic at the given time.
func (s *Store) Save(topic string, at time.Time, payload []byte) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(readingKey(topic, at), payload)
	})
}

// Readings calls iter for every reading on topic received at or after since, oldest first.
// The payload is only valid during the call.
func (s *Store) Readings(topic string, since time.Time, iter func(at time.Time, payload []byte) error) error {
	prefix := topicPrefix(topic)

	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(readingKey(topic, since)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.Key()
			val, err := item.Value()
			if err != nil {
				return err
			}

			if err := iter(keyTime(k, len(prefix)), val); err != nil {
				return err
			}
		}
		return nil
	})
}

// Prune deletes the readings on topic received before the given time and returns how many went.
func (s *Store) Prune(topic string, before time.Time) (int, error) {
	prefix := topicPrefix(topic)

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().Key()
			if !keyTime(k, len(prefix)).Before(before) {
				break
			}
			keys = append(keys, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	txn := s.db.NewTransaction(true)
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			if err == badger.ErrTxnTooBig {
				if err = txn.Commit(nil); err != nil {
					txn.Discard()
					return 0, err
				}
				txn = s.db.NewTransaction(true)
				if err = txn.Delete(k); err != nil {
					txn.Discard()
					return 0, err
				}
			} else {
				txn.Discard()
				return 0, err
			}
		}
	}

	if err := txn.Commit(nil); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func topicPrefix(topic string) []byte {
	p := make([]byte, 0, 3+len(topic))
	p = append(p, 'r', byte(len(topic)>>8), byte(len(topic)))
	return append(p, topic...)
}

func readingKey(topic string, at time.Time) []byte {
	k := topicPrefix(topic)
	return binary.BigEndian.AppendUint64(k, uint64(at.UnixNano()))
}

func keyTime(k []byte, prefixLen int) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(k[prefixLen:])))
}
