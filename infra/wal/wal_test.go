package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestWAL(t *testing.T, segSize int64) (*WAL, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: segSize})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return w, dir
}

func TestAppendAndReplay(t *testing.T) {
	w, dir := openTestWAL(t, 1<<20)

	payloads := []string{"trade-1", "trade-2", "status-3"}
	for i, p := range payloads {
		typ := RecordTrade
		if i == 2 {
			typ = RecordStatus
		}
		if err := w.Append(NewRecord(typ, []byte(p))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []*Record
	lastSeq, err := Replay(dir, func(r *Record) error {
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if lastSeq != 3 {
		t.Errorf("lastSeq = %d, want 3", lastSeq)
	}
	if len(got) != len(payloads) {
		t.Fatalf("replayed %d records, want %d", len(got), len(payloads))
	}
	for i, r := range got {
		if string(r.Data) != payloads[i] {
			t.Errorf("record %d payload = %q, want %q", i, r.Data, payloads[i])
		}
		if r.Seq != uint64(i+1) {
			t.Errorf("record %d seq = %d, want %d", i, r.Seq, i+1)
		}
	}
	if got[2].Type != RecordStatus {
		t.Errorf("record 2 type = %d, want RecordStatus", got[2].Type)
	}
}

func TestSegmentRotationBySize(t *testing.T) {
	w, dir := openTestWAL(t, 64)

	for i := 0; i < 20; i++ {
		if err := w.Append(NewRecord(RecordTrade, []byte(fmt.Sprintf("payload-%02d", i)))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	segs, _ := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if len(segs) < 2 {
		t.Fatalf("got %d segments, want rotation to produce several", len(segs))
	}

	// replay still yields every record in order across segments
	var count int
	lastSeq, err := Replay(dir, func(r *Record) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != 20 || lastSeq != 20 {
		t.Errorf("replayed %d records lastSeq %d, want 20/20", count, lastSeq)
	}
}

func TestSegmentRotationByDuration(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 1 << 20, SegmentDuration: time.Millisecond})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = w.Append(NewRecord(RecordTrade, []byte("a")))
	time.Sleep(5 * time.Millisecond)
	_ = w.Append(NewRecord(RecordTrade, []byte("b")))
	_ = w.Close()

	segs, _ := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if len(segs) < 2 {
		t.Errorf("got %d segments, want time-based rotation", len(segs))
	}
}

func TestReplayDetectsCorruption(t *testing.T) {
	w, dir := openTestWAL(t, 1<<20)
	_ = w.Append(NewRecord(RecordTrade, []byte("payload")))
	_ = w.Close()

	path := filepath.Join(dir, "segment-000000.wal")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[22] ^= 0xFF // flip a payload byte
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err = Replay(dir, func(*Record) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "crc mismatch") {
		t.Errorf("replay err = %v, want crc mismatch", err)
	}
}

func TestReplayToleratesTruncatedTail(t *testing.T) {
	w, dir := openTestWAL(t, 1<<20)
	_ = w.Append(NewRecord(RecordTrade, []byte("complete")))
	_ = w.Append(NewRecord(RecordTrade, []byte("to-be-cut")))
	_ = w.Close()

	path := filepath.Join(dir, "segment-000000.wal")
	data, _ := os.ReadFile(path)
	// cut into the second record's header
	if err := os.WriteFile(path, data[:len(data)-20], 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	var count int
	lastSeq, err := Replay(dir, func(*Record) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != 1 || lastSeq != 1 {
		t.Errorf("replayed %d records lastSeq %d, want the intact prefix only", count, lastSeq)
	}
}

func TestReplayToleratesTruncatedPayload(t *testing.T) {
	w, dir := openTestWAL(t, 1<<20)
	_ = w.Append(NewRecord(RecordTrade, []byte("complete")))
	_ = w.Append(NewRecord(RecordTrade, []byte("to-be-cut")))
	_ = w.Close()

	path := filepath.Join(dir, "segment-000000.wal")
	data, _ := os.ReadFile(path)
	// cut into the second record's payload, past its header
	if err := os.WriteFile(path, data[:len(data)-8], 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	var count int
	lastSeq, err := Replay(dir, func(*Record) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != 1 || lastSeq != 1 {
		t.Errorf("replayed %d records lastSeq %d, want the intact prefix only", count, lastSeq)
	}
}

func TestReopenResumesSequenceAndSegment(t *testing.T) {
	dir := t.TempDir()

	// small segments so the first run rotates
	w, err := Open(Config{Dir: dir, SegmentSize: 64})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := 0; i < 6; i++ {
		if err := w.Append(NewRecord(RecordTrade, []byte(fmt.Sprintf("run1-%d", i)))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	_ = w.Close()

	segsBefore, _ := filepath.Glob(filepath.Join(dir, "segment-*.wal"))
	if len(segsBefore) < 2 {
		t.Fatalf("expected rotation in the first run, got %d segments", len(segsBefore))
	}

	w, err = Open(Config{Dir: dir, SegmentSize: 64})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Append(NewRecord(RecordTrade, []byte(fmt.Sprintf("run2-%d", i)))); err != nil {
			t.Fatalf("append after reopen %d: %v", i, err)
		}
	}
	_ = w.Close()

	// seqs stay monotonic across the restart; replay sees one stream
	var count int
	lastSeq, err := Replay(dir, func(*Record) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("replay after reopen: %v", err)
	}
	if count != 9 || lastSeq != 9 {
		t.Errorf("replayed %d records lastSeq %d, want 9/9", count, lastSeq)
	}
}

func TestReplayEmptyDir(t *testing.T) {
	lastSeq, err := Replay(t.TempDir(), func(*Record) error { return nil })
	if err != nil || lastSeq != 0 {
		t.Errorf("replay of empty dir = %d, %v", lastSeq, err)
	}
}
