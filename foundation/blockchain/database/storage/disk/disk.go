// Package disk implements the ability to read and write blocks to disk, one
// file per block.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/darendal/powchain/foundation/blockchain/database"
)

// ext is the file extension used for block files.
const ext = ".chain"

// Disk represents the serialization implementation for reading and storing
// blocks in their own separate files on disk. This implements the
// database.Storage interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use. The chain directory is created if it
// doesn't exist.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, &database.StorageError{Op: "mkdir", Path: dbPath, Err: err}
	}

	return &Disk{dbPath: dbPath}, nil
}

// Path returns the chain directory.
func (d *Disk) Path() string {
	return d.dbPath
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each new block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified block and stores it on disk in a file labeled
// with the block index. The data is written to a temporary file first and
// renamed into place so readers never see a partial block.
func (d *Disk) Write(block database.Block) error {

	// Marshal the block for writing to disk in a more human readable format.
	data, err := json.MarshalIndent(block, "", "  ")
	if err != nil {
		return &database.StorageError{Op: "marshal", Path: d.getPath(block.Index), Err: err}
	}

	f, err := os.CreateTemp(d.dbPath, ".blk-*")
	if err != nil {
		return &database.StorageError{Op: "create", Path: d.dbPath, Err: err}
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return &database.StorageError{Op: "write", Path: tmp, Err: err}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &database.StorageError{Op: "close", Path: tmp, Err: err}
	}

	path := d.getPath(block.Index)
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &database.StorageError{Op: "rename", Path: path, Err: err}
	}

	return nil
}

// GetBlock locates and returns the contents of the specified block by index.
func (d *Disk) GetBlock(index uint64) (database.Block, error) {
	return d.readFile(d.getPath(index))
}

// ReadAll reads every block file in the chain directory. The blocks are
// returned in directory order, not by index.
func (d *Disk) ReadAll() ([]database.Block, error) {
	entries, err := os.ReadDir(d.dbPath)
	if err != nil {
		return nil, &database.StorageError{Op: "readdir", Path: d.dbPath, Err: err}
	}

	var blocks []database.Block
	for _, entry := range entries {
		if _, ok := blockIndex(entry); !ok {
			continue
		}

		block, err := d.readFile(filepath.Join(d.dbPath, entry.Name()))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

// Truncate removes every block file with an index equal or greater than
// the specified length.
func (d *Disk) Truncate(length uint64) error {
	entries, err := os.ReadDir(d.dbPath)
	if err != nil {
		return &database.StorageError{Op: "readdir", Path: d.dbPath, Err: err}
	}

	for _, entry := range entries {
		index, ok := blockIndex(entry)
		if !ok || index < length {
			continue
		}

		path := filepath.Join(d.dbPath, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &database.StorageError{Op: "remove", Path: path, Err: err}
		}
	}

	return nil
}

// =============================================================================

// readFile opens and decodes the specified block file.
func (d *Disk) readFile(path string) (database.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return database.Block{}, &database.StorageError{Op: "read", Path: path, Err: err}
	}

	return database.Decode(data, path)
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(index uint64) string {
	name := strconv.FormatUint(index, 10)
	return filepath.Join(d.dbPath, fmt.Sprintf("%s%s", name, ext))
}

// blockIndex returns the index encoded in the name of a block file.
func blockIndex(entry fs.DirEntry) (uint64, bool) {
	if !entry.Type().IsRegular() {
		return 0, false
	}

	name, found := strings.CutSuffix(entry.Name(), ext)
	if !found {
		return 0, false
	}

	index, err := strconv.ParseUint(name, 10, 64)
	if err != nil {
		return 0, false
	}

	return index, true
}
