// Package store persists conversation threads in BadgerDB.
//
// Key layout (segments joined by a zero byte):
//
//	t\x00{thread_id}\x00m            → msgpack ThreadMeta
//	t\x00{thread_id}\x00s\x00{seq}   → msgpack Snapshot (seq is big-endian uint64)
//
// Every agent run appends one snapshot holding the thread's full message list
// after the run, so history reads are point-in-time views in append order.
package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"strand/agent"
)

// ErrNotFound is returned when an operation references a thread that has
// never been created or has been deleted.
var ErrNotFound = errors.New("store: thread not found")

const keySep = '\x00'

// DefaultHistoryLimit bounds history reads when the caller passes no limit.
const DefaultHistoryLimit = 50

// Snapshot is one point-in-time view of a thread: the full message list as it
// stood after an agent run.
type Snapshot struct {
	Seq       uint64          `msgpack:"seq" json:"-"`
	Timestamp time.Time       `msgpack:"ts" json:"timestamp"`
	Messages  []agent.Message `msgpack:"messages" json:"messages"`
}

// ThreadMeta is the per-thread bookkeeping record. It outlives Clear so the
// identifier stays valid; only Delete removes it.
type ThreadMeta struct {
	CreatedAt time.Time `msgpack:"created_at" json:"created_at"`
	Archived  bool      `msgpack:"archived" json:"archived"`
	NextSeq   uint64    `msgpack:"next_seq" json:"-"`
}

// Options configures a Store.
type Options struct {
	// Dir is the directory for Badger data files. Required unless InMemory.
	Dir string

	// InMemory runs Badger without disk persistence. Used in tests.
	InMemory bool

	// Logger overrides badger's logger. Nil keeps badger quiet.
	Logger badger.Logger
}

// Store is a badger-backed thread store. Concurrent appends to the same
// thread are serialized by a per-thread mutex; appends to different threads
// do not contend.
type Store struct {
	db *badger.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open creates or opens a Store.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: Options.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(nil)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// threadLock returns the mutex serializing writers for one thread id.
func (s *Store) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[threadID] = l
	}
	return l
}

// --- key helpers ---

func validateID(threadID string) error {
	if threadID == "" {
		return errors.New("store: empty thread id")
	}
	if strings.ContainsRune(threadID, keySep) {
		return fmt.Errorf("store: thread id contains NUL byte")
	}
	return nil
}

func metaKey(threadID string) []byte {
	return []byte("t\x00" + threadID + "\x00m")
}

func snapKey(threadID string, seq uint64) []byte {
	k := make([]byte, 0, len(threadID)+13)
	k = append(k, "t\x00"...)
	k = append(k, threadID...)
	k = append(k, "\x00s\x00"...)
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	return append(k, seqBuf[:]...)
}

func snapPrefix(threadID string) []byte {
	return []byte("t\x00" + threadID + "\x00s\x00")
}

// --- reads ---

func (s *Store) getMeta(txn *badger.Txn, threadID string) (*ThreadMeta, error) {
	item, err := txn.Get(metaKey(threadID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var meta ThreadMeta
	err = item.Value(func(val []byte) error {
		return msgpack.Unmarshal(val, &meta)
	})
	if err != nil {
		return nil, fmt.Errorf("store: decode thread %s meta: %w", threadID, err)
	}
	return &meta, nil
}

// Meta returns the bookkeeping record for a thread, or ErrNotFound.
func (s *Store) Meta(_ context.Context, threadID string) (*ThreadMeta, error) {
	if err := validateID(threadID); err != nil {
		return nil, err
	}
	var meta *ThreadMeta
	err := s.db.View(func(txn *badger.Txn) error {
		m, err := s.getMeta(txn, threadID)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	return meta, err
}

// Latest returns the most recent message list for the thread. A thread that
// does not exist yet (or has been cleared) yields an empty slice and no error,
// matching the implicit-creation contract of the agent loop.
func (s *Store) Latest(ctx context.Context, threadID string) ([]agent.Message, error) {
	snaps, _, err := s.History(ctx, threadID, 1)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return snaps[0].Messages, nil
}

// History returns the thread's snapshots most-recent-first, truncated to
// limit (DefaultHistoryLimit when limit <= 0), plus the total snapshot count
// before truncation. ErrNotFound when the thread has never existed.
func (s *Store) History(_ context.Context, threadID string, limit int) ([]Snapshot, int, error) {
	if err := validateID(threadID); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var snaps []Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := s.getMeta(txn, threadID); err != nil {
			return err
		}

		prefix := snapPrefix(threadID)
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var snap Snapshot
			err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &snap)
			})
			if err != nil {
				return fmt.Errorf("store: decode thread %s snapshot: %w", threadID, err)
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	// Keys iterate oldest-first; the API serves most-recent-first.
	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}

	total := len(snaps)
	if len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, total, nil
}

// --- writes ---

// Append stores msgs as a new snapshot, creating the thread on first use.
func (s *Store) Append(_ context.Context, threadID string, msgs []agent.Message) error {
	if err := validateID(threadID); err != nil {
		return err
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		meta, err := s.getMeta(txn, threadID)
		if errors.Is(err, ErrNotFound) {
			meta = &ThreadMeta{CreatedAt: time.Now().UTC()}
		} else if err != nil {
			return err
		}

		snap := Snapshot{
			Seq:       meta.NextSeq,
			Timestamp: time.Now().UTC(),
			Messages:  msgs,
		}
		snapVal, err := msgpack.Marshal(&snap)
		if err != nil {
			return fmt.Errorf("store: encode snapshot: %w", err)
		}
		if err := txn.Set(snapKey(threadID, meta.NextSeq), snapVal); err != nil {
			return err
		}

		meta.NextSeq++
		metaVal, err := msgpack.Marshal(meta)
		if err != nil {
			return fmt.Errorf("store: encode meta: %w", err)
		}
		return txn.Set(metaKey(threadID), metaVal)
	})
}

// Clear removes all snapshots but keeps the thread id valid for reuse.
func (s *Store) Clear(_ context.Context, threadID string) error {
	if err := validateID(threadID); err != nil {
		return err
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.getMeta(txn, threadID); err != nil {
			return err
		}
		return deletePrefix(txn, snapPrefix(threadID))
	})
}

// Delete removes the thread entirely. The identifier is gone: subsequent
// reads return ErrNotFound until a new thread is created under it.
func (s *Store) Delete(_ context.Context, threadID string) error {
	if err := validateID(threadID); err != nil {
		return err
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := s.getMeta(txn, threadID); err != nil {
			return err
		}
		if err := deletePrefix(txn, snapPrefix(threadID)); err != nil {
			return err
		}
		return txn.Delete(metaKey(threadID))
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.locks, threadID)
	s.mu.Unlock()
	return nil
}

// Archive sets the thread's persisted archived flag. The thread's content is
// untouched; history reads keep working.
func (s *Store) Archive(_ context.Context, threadID string) (*ThreadMeta, error) {
	if err := validateID(threadID); err != nil {
		return nil, err
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	var meta *ThreadMeta
	err := s.db.Update(func(txn *badger.Txn) error {
		m, err := s.getMeta(txn, threadID)
		if err != nil {
			return err
		}
		m.Archived = true
		val, err := msgpack.Marshal(m)
		if err != nil {
			return fmt.Errorf("store: encode meta: %w", err)
		}
		if err := txn.Set(metaKey(threadID), val); err != nil {
			return err
		}
		meta = m
		return nil
	})
	return meta, err
}

// deletePrefix removes every key under prefix within txn.
func deletePrefix(txn *badger.Txn, prefix []byte) error {
	iterOpts := badger.DefaultIteratorOptions
	iterOpts.Prefix = prefix
	iterOpts.PrefetchValues = false
	it := txn.NewIterator(iterOpts)

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if !bytes.HasPrefix(k, prefix) {
			continue
		}
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
