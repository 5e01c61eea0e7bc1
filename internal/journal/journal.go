// Package journal implements the append-only effect log: every mutating
// syscall the dispatcher performs against the filesystem or network is
// recorded here, so a paused instance can be replayed to the point it left
// off rather than re-executing side effects twice.
//
// Grounded on original_source/lib/journal/src/concrete/log_file.rs: an
// 8-byte magic at the head of the file, then a stream of
// <record_type:u16 BE><record_size:48-bit BE> headers each followed by
// record_size bytes of body, a reader that treats a repeated magic as a
// no-op skip (so concatenating two journal files stays readable) and an
// unrecognized record_type as the end of the journal rather than an error.
// Bodies are msgpack here rather than rkyv, matching this runtime's
// general serialization choice (internal/artifact uses the same library
// for its own container metadata). The ordinal-to-offset replay index is
// kept in a go.etcd.io/bbolt database alongside the log file rather than
// rebuilt from an in-memory buffer each time, so Replay can seek directly
// to any ordinal without a linear scan.
package journal

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

// magic identifies a valid journal file; 8 ASCII bytes, matching the
// source's 8-byte magic-number framing.
var magic = [8]byte{'W', 'Z', 'G', 'O', 'J', 'R', 'N', 'L'}

// RecordType distinguishes the kind of effect one entry records.
type RecordType uint16

const (
	RecordUnknown RecordType = iota
	RecordFileWrite
	RecordFileTruncate
	RecordPathCreateFile
	RecordPathUnlink
	RecordPathRename
	RecordSockConnect
	RecordSockSend
	RecordSockRecv
	RecordProcessExit
)

// Entry is one journaled effect: a type tag plus an opaque msgpack-encoded
// body the caller defines the shape of.
type Entry struct {
	Type RecordType
	Body []byte
}

// EncodeBody msgpack-encodes v for use as an Entry's Body.
func EncodeBody(v any) ([]byte, error) { return msgpack.Marshal(v) }

// DecodeBody msgpack-decodes an Entry's Body into v.
func DecodeBody(body []byte, v any) error { return msgpack.Unmarshal(body, v) }

var (
	indexBucket   = []byte("offsets")
	errBadMagic   = errors.New("journal: file does not start with the expected magic")
	errCorruptLog = errors.New("journal: record header points past end of file")
)

// Log is an append-only journal file plus its ordinal-to-offset index.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	idx     *bbolt.DB
	ordinal uint64
	pos     int64
}

// Open opens (creating if necessary) the journal at path and its sibling
// index file at path+".idx", rebuilding the index from the log by scanning
// forward if the index is empty or stale.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "journal: open log file")
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "journal: seek log file")
	}

	if size == 0 {
		if _, err := f.WriteAt(magic[:], 0); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "journal: write magic")
		}
		size = int64(len(magic))
	} else {
		var got [8]byte
		if _, err := f.ReadAt(got[:], 0); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "journal: read magic")
		}
		if got != magic {
			f.Close()
			return nil, errBadMagic
		}
	}

	idx, err := bbolt.Open(path+".idx", 0o644, nil)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "journal: open index")
	}

	l := &Log{file: f, idx: idx, pos: size}
	if err := l.rebuildIndex(); err != nil {
		idx.Close()
		f.Close()
		return nil, err
	}
	return l, nil
}

// rebuildIndex scans the log from just past the magic and repopulates the
// bbolt ordinal->offset index, matching the source's tolerant reader: a
// repeated magic mid-stream is skipped, and an unrecognized record type
// ends the scan early rather than erroring.
func (l *Log) rebuildIndex() error {
	return l.idx.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(indexBucket); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		bucket, err := tx.CreateBucket(indexBucket)
		if err != nil {
			return err
		}

		var ordinal uint64
		offset := int64(len(magic))
		header := make([]byte, 8)
		for {
			n, err := l.file.ReadAt(header, offset)
			if err == io.EOF && n < 8 {
				break
			}
			if err != nil && err != io.EOF {
				return err
			}
			if n < 8 {
				break
			}
			if string(header) == string(magic[:]) {
				offset += 8
				continue
			}
			recType := RecordType(binary.BigEndian.Uint16(header[0:2]))
			size := uint64(header[2])<<40 | uint64(header[3])<<32 | uint64(header[4])<<24 |
				uint64(header[5])<<16 | uint64(header[6])<<8 | uint64(header[7])
			if !knownRecordType(recType) {
				break
			}

			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, ordinal)
			val := make([]byte, 8)
			binary.BigEndian.PutUint64(val, uint64(offset))
			if err := bucket.Put(key, val); err != nil {
				return err
			}

			ordinal++
			offset += 8 + int64(size)
		}
		return nil
	})
}

func knownRecordType(t RecordType) bool {
	return t >= RecordFileWrite && t <= RecordProcessExit
}

// Append writes entry at the end of the log and records its ordinal in the
// index, returning the ordinal it was assigned.
func (l *Log) Append(entry Entry) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := make([]byte, 8)
	binary.BigEndian.PutUint16(header[0:2], uint16(entry.Type))
	size := uint64(len(entry.Body))
	header[2] = byte(size >> 40)
	header[3] = byte(size >> 32)
	header[4] = byte(size >> 24)
	header[5] = byte(size >> 16)
	header[6] = byte(size >> 8)
	header[7] = byte(size)

	offset := l.pos
	if _, err := l.file.WriteAt(append(header, entry.Body...), offset); err != nil {
		return 0, errors.Wrap(err, "journal: append record")
	}
	l.pos = offset + 8 + int64(len(entry.Body))

	ordinal := l.ordinal
	if err := l.idx.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(indexBucket)
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, ordinal)
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(offset))
		return bucket.Put(key, val)
	}); err != nil {
		return 0, errors.Wrap(err, "journal: index record")
	}
	l.ordinal++
	return ordinal, nil
}

// Read returns the entry at ordinal, or false if no such ordinal was
// recorded.
func (l *Log) Read(ordinal uint64) (Entry, bool, error) {
	var offset uint64
	found := false
	err := l.idx.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(indexBucket)
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, ordinal)
		val := bucket.Get(key)
		if val == nil {
			return nil
		}
		offset = binary.BigEndian.Uint64(val)
		found = true
		return nil
	})
	if err != nil || !found {
		return Entry{}, false, err
	}
	return l.readAt(int64(offset))
}

func (l *Log) readAt(offset int64) (Entry, bool, error) {
	header := make([]byte, 8)
	if _, err := l.file.ReadAt(header, offset); err != nil {
		return Entry{}, false, errCorruptLog
	}
	recType := RecordType(binary.BigEndian.Uint16(header[0:2]))
	size := uint64(header[2])<<40 | uint64(header[3])<<32 | uint64(header[4])<<24 |
		uint64(header[5])<<16 | uint64(header[6])<<8 | uint64(header[7])

	body := make([]byte, size)
	if size > 0 {
		if _, err := l.file.ReadAt(body, offset+8); err != nil {
			return Entry{}, false, errCorruptLog
		}
	}
	return Entry{Type: recType, Body: body}, true, nil
}

// Replay invokes fn once per recorded entry, in ordinal order, stopping at
// the first error fn returns.
func (l *Log) Replay(fn func(ordinal uint64, entry Entry) error) error {
	var ordinals []uint64
	err := l.idx.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(indexBucket)
		return bucket.ForEach(func(k, _ []byte) error {
			ordinals = append(ordinals, binary.BigEndian.Uint64(k))
			return nil
		})
	})
	if err != nil {
		return err
	}
	for _, ord := range ordinals {
		entry, ok, err := l.Read(ord)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(ord, entry); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and closes the log file and its index.
func (l *Log) Close() error {
	idxErr := l.idx.Close()
	fileErr := l.file.Close()
	if idxErr != nil {
		return idxErr
	}
	return fileErr
}
