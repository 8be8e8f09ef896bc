// Package wal implements the write-ahead log the ambient write path
// appends to before landing a statement in the active mem: enough to
// let a demo or test rebuild an Index's mem state from a durable log,
// which is all the point-lookup path needs from its write side.
package wal

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"lsmkv/pkg/dberrors"
)

var errFlushLoopStopped = errors.New("wal: flush loop stopped")

type seqNum = uint64

// Entry is a single logged write: SeqNum is the statement's LSN, Meta
// carries its stmt.Kind.
type Entry struct {
	SeqNum uint64
	Key    []byte
	Value  []byte
	Meta   uint64
}

// WAL appends entries asynchronously through its own flush goroutine,
// fsyncing each one before acknowledging it on Done.
type WAL struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	filePath string

	inputCh chan Entry
	doneCh  chan seqNum

	wg     sync.WaitGroup
	cancel func()
}

// New creates a WAL rooted at dir, opening (or creating) wal.log.
func New(dir string) (*WAL, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty WAL dir")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	filePath := filepath.Join(dir, "wal.log")
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}

	w := &WAL{
		file:     file,
		writer:   bufio.NewWriter(file),
		filePath: filePath,
		inputCh:  make(chan Entry, 3),
		doneCh:   make(chan seqNum, 3),
		cancel:   func() {},
	}

	return w, nil
}

// Append enqueues entry for the flush goroutine to persist.
func (w *WAL) Append(entry Entry) {
	w.inputCh <- entry
}

// Start launches the flush goroutine that drains Append and persists
// each entry in order until Stop is called.
func (w *WAL) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		for {
			err := w.runOnce(ctx)
			switch {
			case errors.Is(err, errFlushLoopStopped):
				return
			case err != nil:
				panic("wal flush loop error: " + err.Error())
			}
		}
	}()
}

func (w *WAL) runOnce(ctx context.Context) error {
	select {
	case entry := <-w.inputCh:
		if err := w.writeFile(entry); err != nil {
			return fmt.Errorf("failed to handle WAL entry: %w", err)
		}
	case <-ctx.Done():
		return errFlushLoopStopped
	}
	return nil
}

// Stop cancels the flush goroutine, waits for it to exit, then closes
// the input and ack channels. Entries still queued in Append's channel
// when the goroutine exits are not written.
func (w *WAL) Stop() {
	w.cancel()
	w.wg.Wait()
	close(w.inputCh)
	close(w.doneCh)
}

func (w *WAL) writeFile(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeEntry(entry); err != nil {
		return fmt.Errorf("failed to write WAL entry: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAL: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync WAL: %w", err)
	}

	w.doneCh <- entry.SeqNum
	return nil
}

// Replay reads every entry with SeqNum >= start and hands it to
// callback, in log order.
func (w *WAL) Replay(start uint64, callback func(Entry) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush WAL before replay: %w", err)
	}

	file, err := os.Open(w.filePath)
	if err != nil {
		return fmt.Errorf("failed to open WAL for reading: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("failed to close WAL read file", "error", cerr)
		}
	}()

	reader := bufio.NewReader(file)
	for {
		entry, err := w.readEntry(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to read WAL entry: %w", err)
		}
		if entry.SeqNum < start {
			continue
		}
		if err := callback(entry); err != nil {
			return fmt.Errorf("WAL replay callback failed: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the underlying file. It does not stop the
// flush goroutine; callers should Stop it first.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer != nil {
		if err := w.writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush WAL on close: %w", err)
		}
		w.writer = nil
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close WAL file: %w", err)
		}
		w.file = nil
	}
	return nil
}

func (w *WAL) writeEntry(entry Entry) error {
	if w.writer == nil {
		return dberrors.ErrClosed
	}

	if err := binary.Write(w.writer, binary.LittleEndian, entry.SeqNum); err != nil {
		return err
	}
	if err := binary.Write(w.writer, binary.LittleEndian, entry.Meta); err != nil {
		return err
	}
	if len(entry.Key) > math.MaxUint32 {
		return fmt.Errorf("key too large: %d", len(entry.Key))
	}
	if err := binary.Write(w.writer, binary.LittleEndian, uint32(len(entry.Key))); err != nil {
		return err
	}
	if _, err := w.writer.Write(entry.Key); err != nil {
		return err
	}
	if len(entry.Value) > math.MaxUint32 {
		return fmt.Errorf("value too large: %d", len(entry.Value))
	}
	if err := binary.Write(w.writer, binary.LittleEndian, uint32(len(entry.Value))); err != nil {
		return err
	}
	if _, err := w.writer.Write(entry.Value); err != nil {
		return err
	}
	return nil
}

func (w *WAL) readEntry(reader *bufio.Reader) (Entry, error) {
	var entry Entry

	if err := binary.Read(reader, binary.LittleEndian, &entry.SeqNum); err != nil {
		return entry, err
	}
	if err := binary.Read(reader, binary.LittleEndian, &entry.Meta); err != nil {
		return entry, err
	}
	var keyLen uint32
	if err := binary.Read(reader, binary.LittleEndian, &keyLen); err != nil {
		return entry, err
	}
	entry.Key = make([]byte, keyLen)
	if _, err := io.ReadFull(reader, entry.Key); err != nil {
		return entry, err
	}
	var valueLen uint32
	if err := binary.Read(reader, binary.LittleEndian, &valueLen); err != nil {
		return entry, err
	}
	entry.Value = make([]byte, valueLen)
	if _, err := io.ReadFull(reader, entry.Value); err != nil {
		return entry, err
	}
	return entry, nil
}

// Done reports the SeqNum of each entry as it is durably persisted.
func (w *WAL) Done() <-chan seqNum {
	return w.doneCh
}

func (w *WAL) stop() {
	close(w.inputCh)
	close(w.doneCh)
}
