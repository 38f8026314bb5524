package decisionstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
	"time"

	"context"

	"github.com/lattice-compute/routectl/pkg/apierr"
	"github.com/lattice-compute/routectl/pkg/contracts"
)

// fileSchemaVersion is bumped whenever the on-disk record format changes.
const fileSchemaVersion uint32 = 1

// header is written once at file offset 0: a fixed-width schema version
// followed by a CRC32 over that version, per §6 "Persistence layout".
type header struct {
	Version uint32
	CRC     uint32
}

const headerSize = 8 // 4 bytes version + 4 bytes CRC

// FileStore is a durable Store backed by a single append-only file of
// length-prefixed, checksummed records, following the teacher's file_ledger
// shape (mutex-guarded in-memory index hydrated from
// disk) generalized to a length-prefixed binary frame instead of a single
// JSON blob, so partial writes are detectable and discardable on recovery
// (§4.6 "Crash-safety").
type FileStore struct {
	path string
	mu   sync.Mutex
	mem  *MemStore // in-memory index, the durable source of truth is the file
	file *os.File
}

// NewFileStore opens (creating if absent) the store at path, replaying any
// existing records and discarding a trailing partial record if the process
// crashed mid-write.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, mem: NewMemStore()}
	if err := fs.openAndRecover(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) openAndRecover() error {
	f, err := os.OpenFile(fs.path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("decisionstore: open: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if info.Size() == 0 {
		if err := writeHeader(f); err != nil {
			return err
		}
	} else if err := validateHeader(f); err != nil {
		return apierr.Wrap(apierr.KindCorruption, "decision store header checksum failed", err)
	}

	if err := fs.replay(f); err != nil {
		return err
	}

	fs.file = f
	return nil
}

func writeHeader(f *os.File) error {
	h := header{Version: fileSchemaVersion}
	h.CRC = crc32.ChecksumIEEE(versionBytes(h.Version))
	buf := make([]byte, headerSize)
	binary.BigEndian.PutUint32(buf[0:4], h.Version)
	binary.BigEndian.PutUint32(buf[4:8], h.CRC)
	_, err := f.WriteAt(buf, 0)
	return err
}

func validateHeader(f *os.File) error {
	buf := make([]byte, headerSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return err
	}
	version := binary.BigEndian.Uint32(buf[0:4])
	crc := binary.BigEndian.Uint32(buf[4:8])
	if crc32.ChecksumIEEE(versionBytes(version)) != crc {
		return fmt.Errorf("header CRC mismatch")
	}
	if version != fileSchemaVersion {
		return fmt.Errorf("unsupported schema version %d", version)
	}
	return nil
}

func versionBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// record is one frame: len(payload) || payload || crc32(payload).
func (fs *FileStore) replay(f *os.File) error {
	if _, err := f.Seek(headerSize, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(f)
	good := int64(headerSize) // end of the last intact record

	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return f.Truncate(good) // clean end, or a truncated trailing length prefix: discard
			}
			return err
		}
		n := binary.BigEndian.Uint32(lenBuf)

		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return f.Truncate(good) // truncated payload from a crash mid-write: discard, stop replay
		}

		crcBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, crcBuf); err != nil {
			return f.Truncate(good) // truncated checksum: discard
		}
		wantCRC := binary.BigEndian.Uint32(crcBuf)
		if crc32.ChecksumIEEE(payload) != wantCRC {
			return f.Truncate(good) // corrupted trailing record: discard, do not re-order survivors
		}

		var trace contracts.DecisionTrace
		if err := json.Unmarshal(payload, &trace); err != nil {
			return f.Truncate(good)
		}
		good += int64(8 + n)
		// A later record for the same id supersedes the earlier one in place.
		if _, seen := fs.mem.traces[trace.DecisionID]; !seen {
			fs.mem.order = append(fs.mem.order, trace.DecisionID)
		}
		fs.mem.traces[trace.DecisionID] = &trace
	}
}

func (fs *FileStore) appendRecord(trace contracts.DecisionTrace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return err
	}
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(payload)))
	crcBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBuf, crc32.ChecksumIEEE(payload))

	if _, err := fs.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if _, err := fs.file.Write(lenBuf); err != nil {
		return err
	}
	if _, err := fs.file.Write(payload); err != nil {
		return err
	}
	if _, err := fs.file.Write(crcBuf); err != nil {
		return err
	}
	return fs.file.Sync()
}

func (fs *FileStore) Create(ctx context.Context, trace contracts.DecisionTrace) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.mem.Create(ctx, trace); err != nil {
		return err
	}
	return fs.appendRecord(trace)
}

func (fs *FileStore) Get(ctx context.Context, id string) (contracts.DecisionTrace, error) {
	return fs.mem.Get(ctx, id)
}

func (fs *FileStore) FinalizeOutcome(ctx context.Context, id string, outcome contracts.Outcome, rewardValue float64, poisoned bool) (float64, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	reward, applied, err := fs.mem.FinalizeOutcome(ctx, id, outcome, rewardValue, poisoned)
	if err != nil || !applied {
		return reward, applied, err
	}
	updated, getErr := fs.mem.Get(ctx, id)
	if getErr != nil {
		return reward, applied, getErr
	}
	return reward, applied, fs.appendRecord(updated)
}

func (fs *FileStore) MarkAbandoned(ctx context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.mem.MarkAbandoned(ctx, id); err != nil {
		return err
	}
	updated, err := fs.mem.Get(ctx, id)
	if err != nil {
		return err
	}
	return fs.appendRecord(updated)
}

func (fs *FileStore) ScanByTimeRange(ctx context.Context, from, to time.Time) ([]contracts.DecisionTrace, error) {
	return fs.mem.ScanByTimeRange(ctx, from, to)
}

func (fs *FileStore) ScanByTenant(ctx context.Context, tenant string) ([]contracts.DecisionTrace, error) {
	return fs.mem.ScanByTenant(ctx, tenant)
}

// Retention removes matching traces from the in-memory index only. The
// backing append-only file is not compacted, so removed traces are loaded
// again when the file is replayed on the next open.
func (fs *FileStore) Retention(ctx context.Context, before time.Time) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mem.Retention(ctx, before)
}

// Close flushes and closes the backing file.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.file.Close()
}
