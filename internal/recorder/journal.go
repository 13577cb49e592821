package recorder

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/yanun0323/errors"

	"main/internal/codec"
	"main/internal/schema"
)

var (
	ErrClosed = errors.New("journal closed")
)

// record is one journal line. Seq is the bus insertion sequence so a
// replay reconstructs the exact total order, including timestamp ties.
type record struct {
	Kind string          `json:"kind"`
	Seq  uint64          `json:"seq"`
	Ts   uint64          `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// Writer appends events to a journal file, one JSON line per event.
type Writer struct {
	f      *os.File
	buf    *bufio.Writer
	fsync  bool
	closed bool
}

// NewWriter opens or creates a journal file for appending.
func NewWriter(path string, fsync bool) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	return &Writer{
		f:     f,
		buf:   bufio.NewWriterSize(f, 64*1024),
		fsync: fsync,
	}, nil
}

// Append writes one event under the given bus sequence.
func (w *Writer) Append(seq uint64, ev schema.Event) error {
	if w.closed {
		return ErrClosed
	}

	kind, payload, err := codec.EncodeEvent(ev)
	if err != nil {
		return err
	}
	line, err := json.Marshal(record{
		Kind: kind,
		Seq:  seq,
		Ts:   ev.Timestamp(),
		Data: payload,
	})
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}

	if _, err := w.buf.Write(line); err != nil {
		return errors.Wrap(err, "write record")
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "write record")
	}
	if w.fsync {
		if err := w.buf.Flush(); err != nil {
			return errors.Wrap(err, "flush")
		}
		if err := w.f.Sync(); err != nil {
			return errors.Wrap(err, "sync")
		}
	}
	return nil
}

// Close flushes and closes the journal.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		_ = w.f.Close()
		return errors.Wrap(err, "flush")
	}
	return w.f.Close()
}

// Entry is one decoded journal event with its original sequence.
type Entry struct {
	Seq   uint64
	Event schema.Event
}

// ReadAll loads a whole journal. A torn final line, the usual crash
// artifact, is skipped; corruption anywhere else is an error.
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}
	defer f.Close()
	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var pendingErr error
	for scanner.Scan() {
		if pendingErr != nil {
			return nil, pendingErr
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			pendingErr = errors.Wrap(err, "corrupt journal line")
			continue
		}
		ev, err := codec.DecodeEvent(rec.Kind, rec.Data)
		if err != nil {
			pendingErr = err
			continue
		}
		entries = append(entries, Entry{Seq: rec.Seq, Event: ev})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan journal")
	}
	return entries, nil
}
