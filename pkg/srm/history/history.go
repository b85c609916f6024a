// Package history is a Badger-backed journal of trash, restore and purge
// events. It is an audit trail only; the metadata store stays the source
// of truth for what is in the trash.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/jamesainslie/srm/pkg/srm/types"
)

// Op names the kind of event.
type Op string

// Journal event kinds.
const (
	OpTrash       Op = "trash"
	OpRestore     Op = "restore"
	OpPurge       Op = "purge"
	OpForcePurge  Op = "force-purge"
	OpPurgeFailed Op = "purge-failed"
	OpForget      Op = "forget"
)

const (
	prefixEvent = "h:" // h:<unix nanos, 8 bytes BE><id> -> Event JSON
	prefixID    = "i:" // i:<id> -> event key
	keySchema   = "m:__schema__"

	schemaVersion = 1
)

// Event is one journal record.
type Event struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Op           Op        `json:"op"`
	OriginalPath string    `json:"original_path"`
	StoredPath   string    `json:"stored_path"`
	Size         int64     `json:"size"`
	Checksum     string    `json:"checksum,omitempty"`
	Warning      string    `json:"warning,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Journal stores events ordered by time.
type Journal struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates the journal directory at path.
func Open(path string) (*Journal, error) {
	return open(badger.DefaultOptions(path))
}

// OpenInMemory returns a journal that lives only as long as the process.
func OpenInMemory() (*Journal, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Journal, error) {
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	j := &Journal{db: db, now: time.Now}
	if err := j.checkSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) checkSchema() error {
	return j.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySchema))
		if errors.Is(err, badger.ErrKeyNotFound) {
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, schemaVersion)
			return txn.Set([]byte(keySchema), buf)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 4 || binary.BigEndian.Uint32(val) != schemaVersion {
				return fmt.Errorf("history schema mismatch (want v%d)", schemaVersion)
			}
			return nil
		})
	})
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores ev, assigning ID and Time when they are empty.
func (j *Journal) Record(ev Event) (Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = j.now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return Event{}, fmt.Errorf("marshal event: %w", err)
	}

	key := eventKey(ev.Time, ev.ID)
	err = j.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set([]byte(prefixID+ev.ID), key)
	})
	if err != nil {
		return Event{}, fmt.Errorf("record event: %w", err)
	}
	return ev, nil
}

// Get returns the event with the given ID.
func (j *Journal) Get(id string) (Event, error) {
	var ev Event
	err := j.db.View(func(txn *badger.Txn) error {
		ref, err := txn.Get([]byte(prefixID + id))
		if err != nil {
			return err
		}
		key, err := ref.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &ev)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Event{}, types.E(types.NotFound, "history", id, err)
	}
	if err != nil {
		return Event{}, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// List returns events newest first. limit <= 0 returns all. When ops is
// non-empty only events of those kinds are returned.
func (j *Journal) List(limit int, ops ...Op) ([]Event, error) {
	want := make(map[Op]bool, len(ops))
	for _, op := range ops {
		want[op] = true
	}

	events := []Event{}
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixEvent)
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(prefixEvent), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			var ev Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return err
			}
			if len(want) > 0 && !want[ev.Op] {
				continue
			}
			events = append(events, ev)
			if limit > 0 && len(events) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// Cleanup deletes events recorded before cutoff and returns how many were removed.
func (j *Journal) Cleanup(cutoff time.Time) (int, error) {
	var stale [][]byte
	var ids []string

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixEvent)
		it := txn.NewIterator(opts)
		defer it.Close()

		end := eventKey(cutoff, "")
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) >= string(end) {
				break
			}
			stale = append(stale, key)
			ids = append(ids, string(key[len(prefixEvent)+8:]))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan events: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := j.db.NewWriteBatch()
	defer wb.Cancel()
	for i, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
		if err := wb.Delete([]byte(prefixID + ids[i])); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	return len(stale), nil
}

func eventKey(t time.Time, id string) []byte {
	key := make([]byte, 0, len(prefixEvent)+8+len(id))
	key = append(key, prefixEvent...)
	key = binary.BigEndian.AppendUint64(key, uint64(t.UnixNano()))
	return append(key, id...)
}
