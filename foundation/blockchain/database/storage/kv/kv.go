// Package kv implements the ability to read and write blocks to a badger
// key/value store. Every block is stored under a key built from its index.
package kv

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/darendal/powchain/foundation/blockchain/database"
	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
)

// keyPrefix is prepended to the zero padded block index.
const keyPrefix = "block:"

// KV represents the serialization implementation for reading and storing
// blocks in badger. This implements the database.Storage interface.
type KV struct {
	dbPath string
	db     *badger.DB
}

// New opens, or creates, the badger store at the specified path. Badger's
// own logging is routed to the specified logger, which can be nil.
func New(dbPath string, log *zap.SugaredLogger) (*KV, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	opts := badger.DefaultOptions(dbPath).WithLogger(logger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &database.StorageError{Op: "open", Path: dbPath, Err: err}
	}

	return &KV{dbPath: dbPath, db: db}, nil
}

// Close releases the badger store.
func (kv *KV) Close() error {
	return kv.db.Close()
}

// Write stores the block, replacing any block with the same index.
func (kv *KV) Write(block database.Block) error {
	data, err := block.Encode()
	if err != nil {
		return &database.StorageError{Op: "marshal", Path: key(block.Index), Err: err}
	}

	err = kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key(block.Index)), data)
	})
	if err != nil {
		return &database.StorageError{Op: "write", Path: key(block.Index), Err: err}
	}

	return nil
}

// GetBlock locates and returns the specified block by index.
func (kv *KV) GetBlock(index uint64) (database.Block, error) {
	var data []byte

	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key(index)))
		if err != nil {
			return err
		}

		data, err = item.ValueCopy(nil)
		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return database.Block{}, &database.StorageError{Op: "get", Path: key(index), Err: fs.ErrNotExist}
	case err != nil:
		return database.Block{}, &database.StorageError{Op: "get", Path: key(index), Err: err}
	}

	return database.Decode(data, key(index))
}

// ReadAll returns every stored block. Keys are zero padded so the blocks
// come back ordered by index.
func (kv *KV) ReadAll() ([]database.Block, error) {
	var blocks []database.Block

	err := kv.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			block, err := database.Decode(data, string(item.Key()))
			if err != nil {
				return err
			}
			blocks = append(blocks, block)
		}

		return nil
	})

	if err != nil {
		var de *database.DecodeError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &database.StorageError{Op: "iterate", Path: kv.dbPath, Err: err}
	}

	return blocks, nil
}

// Truncate removes every block with an index equal or greater than the
// specified length.
func (kv *KV) Truncate(length uint64) error {
	var stale [][]byte

	err := kv.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek([]byte(key(length))); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}

		return nil
	})
	if err != nil {
		return &database.StorageError{Op: "iterate", Path: kv.dbPath, Err: err}
	}

	err = kv.db.Update(func(txn *badger.Txn) error {
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &database.StorageError{Op: "delete", Path: kv.dbPath, Err: err}
	}

	return nil
}

// =============================================================================

// key forms the badger key for the specified block index.
func key(index uint64) string {
	return fmt.Sprintf("%s%020d", keyPrefix, index)
}

// =============================================================================

// logger adapts a zap logger to the badger.Logger interface. Badger is
// chatty at the info level so those messages are logged as debug.
type logger struct {
	log *zap.SugaredLogger
}

func (l logger) Errorf(format string, args ...any) {
	l.log.Errorf("badger: "+format, args...)
}

func (l logger) Warningf(format string, args ...any) {
	l.log.Warnf("badger: "+format, args...)
}

func (l logger) Infof(format string, args ...any) {
	l.log.Debugf("badger: "+format, args...)
}

func (l logger) Debugf(format string, args ...any) {
	l.log.Debugf("badger: "+format, args...)
}
