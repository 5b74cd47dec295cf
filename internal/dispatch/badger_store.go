package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// Key layout: pending jobs sort FIFO under "p:<created-nanos>:<jobID>";
// claimed jobs live under "a:<jobID>" until acknowledged or requeued.
const (
	pendingPrefix = "p:"
	activePrefix  = "a:"
)

// BadgerStore is a disk-backed Store. The single source of truth for work
// admission: jobs survive process restarts and claimed jobs are replayed on
// recovery.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the job store at the given path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger job store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func pendingKey(job Job) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", pendingPrefix, job.CreatedAt.UnixNano(), job.ID))
}

func activeKey(jobID string) []byte {
	return []byte(activePrefix + jobID)
}

func (s *BadgerStore) Enqueue(ctx context.Context, job Job) error {
	val, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(job), val)
	})
}

func (s *BadgerStore) Claim(ctx context.Context) (Job, bool, error) {
	var job Job
	claimed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pendingPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		if !it.Valid() {
			return nil
		}
		item := it.Item()
		if err := item.Value(func(v []byte) error {
			return json.Unmarshal(v, &job)
		}); err != nil {
			return err
		}
		val, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if err := txn.Delete(item.KeyCopy(nil)); err != nil {
			return err
		}
		if err := txn.Set(activeKey(job.ID), val); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return Job{}, false, fmt.Errorf("claiming job: %w", err)
	}
	return job, claimed, nil
}

func (s *BadgerStore) Ack(ctx context.Context, jobID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(activeKey(jobID))
	})
}

func (s *BadgerStore) Requeue(ctx context.Context, job Job) error {
	val, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(activeKey(job.ID)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(pendingKey(job), val)
	})
}

func (s *BadgerStore) PendingCount(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pendingPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *BadgerStore) RecoverActive(ctx context.Context) (int, error) {
	var jobs []Job
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(activePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var job Job
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &job)
			}); err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanning active jobs: %w", err)
	}
	for _, job := range jobs {
		if err := s.Requeue(ctx, job); err != nil {
			return 0, err
		}
	}
	return len(jobs), nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
