// Package tickstore is the append-only JSONL log of tick records: one file
// per configured target plus a rolling set of daily shards.
package tickstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/metrics"
	"github.com/web3-frozen/pair-dashboard/internal/record"
)

const (
	// DefaultRetention is the number of daily shards kept by Rotate.
	DefaultRetention = 7

	pendingTarget = "pending"
	shardPrefix   = "data_"
	shardSuffix   = ".json"
	tailChunk     = 64 << 10
)

// maxLineBytes bounds one entry; longer lines are skipped on read.
var maxLineBytes = 16 << 20

// Store appends tick records and reads them back. Appends are serialized;
// reads skip malformed entries instead of failing.
type Store struct {
	dir       string
	retention int
	logger    *slog.Logger

	mu     sync.Mutex
	target string
	path   string
	last   []byte
	lastTS time.Time
}

// Open prepares dir and points the store at target. An empty target uses the
// pending file until Retarget is called.
func Open(dir, target string, retention int, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	s := &Store{dir: dir, retention: retention, logger: logger}
	if err := s.Retarget(target); err != nil {
		return nil, err
	}
	return s, nil
}

// Retarget switches the per-target file and reloads its latest entry.
func (s *Store) Retarget(target string) error {
	path := filepath.Join(s.dir, fileName(target))
	last, err := lastValidLine(path)
	if err != nil {
		return fmt.Errorf("read tail of %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
	s.path = path
	s.last = last
	s.lastTS = time.Time{}
	if last != nil {
		var rec record.Record
		if json.Unmarshal(last, &rec) == nil {
			s.lastTS = rec.Timestamp
		}
	}
	return nil
}

// Path returns the per-target file.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Append writes rec to the target file and to today's shard. The two writes
// are independent: a failure in one does not skip the other. A timestamp
// older than the previous entry is raised to keep the log non-decreasing.
func (s *Store) Append(rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.Before(s.lastTS) {
		rec.Timestamp = s.lastTS
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	shard := filepath.Join(s.dir, shardPrefix+rec.Timestamp.Format("20060102")+shardSuffix)

	var errs []error
	if err := appendLine(s.path, line); err != nil {
		metrics.StoreWriteErrorsTotal.WithLabelValues("target").Inc()
		errs = append(errs, fmt.Errorf("append %s: %w", s.path, err))
	} else {
		s.last = bytes.TrimSuffix(line, []byte{'\n'})
		s.lastTS = rec.Timestamp
	}
	if err := appendLine(shard, line); err != nil {
		metrics.StoreWriteErrorsTotal.WithLabelValues("shard").Inc()
		errs = append(errs, fmt.Errorf("append %s: %w", shard, err))
	}
	if len(errs) < 2 {
		metrics.TicksAppendedTotal.Inc()
	}
	return errors.Join(errs...)
}

// Tail returns the most recently appended record, or false when the store
// has none.
func (s *Store) Tail() (record.Record, bool) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	var rec record.Record
	if last == nil || json.Unmarshal(last, &rec) != nil {
		return record.Record{}, false
	}
	return rec, true
}

// Window returns up to the last n records in append order. Malformed lines
// are skipped. A missing file yields an empty window.
func (s *Store) Window(n int) ([]record.Record, error) {
	if n <= 0 {
		return []record.Record{}, nil
	}
	ring := make([][]byte, 0, n)
	err := s.eachLine(func(line []byte) {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, append([]byte(nil), line...))
	})
	out := make([]record.Record, 0, len(ring))
	for _, line := range ring {
		var rec record.Record
		if json.Unmarshal(line, &rec) != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, err
}

// Scan calls fn for every well-formed record in append order.
func (s *Store) Scan(fn func(record.Record)) error {
	return s.eachLine(func(line []byte) {
		var rec record.Record
		if json.Unmarshal(line, &rec) == nil {
			fn(rec)
		}
	})
}

// Rotate deletes the oldest daily shards beyond the retention count.
func (s *Store) Rotate() error {
	shards, err := filepath.Glob(filepath.Join(s.dir, shardPrefix+"*"+shardSuffix))
	if err != nil {
		return err
	}
	if len(shards) <= s.retention {
		return nil
	}
	sort.Strings(shards)
	var errs []error
	for _, old := range shards[:len(shards)-s.retention] {
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		s.logger.Info("removed old shard", "file", filepath.Base(old))
	}
	return errors.Join(errs...)
}

func (s *Store) eachLine(fn func([]byte)) error {
	path := s.Path()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64<<10)
	var buf []byte
	oversized := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !oversized && len(chunk) > 0 {
			if len(buf)+len(chunk) > maxLineBytes {
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err != nil && err != io.EOF:
			return err
		}

		if oversized {
			s.logger.Warn("skipped oversized entry", "path", path, "limit_bytes", maxLineBytes)
		} else if line := bytes.TrimSpace(buf); len(line) > 0 {
			fn(line)
		}
		buf = buf[:0]
		oversized = false
		if err == io.EOF {
			return nil
		}
	}
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

// lastValidLine reads path backwards in chunks and returns the last line
// that decodes as a record, or nil when there is none.
func lastValidLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var carry []byte
	for end := info.Size(); end > 0; {
		start := end - tailChunk
		if start < 0 {
			start = 0
		}
		buf := make([]byte, end-start)
		if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(buf, carry...)

		lines := bytes.Split(buf, []byte{'\n'})
		// The first piece may be a partial line unless we reached offset 0.
		first := 0
		if start > 0 {
			first = 1
			carry = lines[0]
		}
		for i := len(lines) - 1; i >= first; i-- {
			line := bytes.TrimSpace(lines[i])
			if len(line) > 0 && decodes(line) {
				return append([]byte(nil), line...), nil
			}
		}
		if len(carry) > maxLineBytes {
			carry = nil
		}
		end = start
	}
	return nil, nil
}

func decodes(line []byte) bool {
	var rec record.Record
	return json.Unmarshal(line, &rec) == nil
}

func fileName(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		target = pendingTarget
	}
	target = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(target)
	return target + ".json"
}
