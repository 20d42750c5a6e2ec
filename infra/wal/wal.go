// Package wal is the append-only journal behind the Logger stage. Every
// trade and every terminal status transition is framed with a CRC and
// written to size/time rotated segments, giving the engine an audit
// record whose order is execution order.
package wal

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
}

type WAL struct {
	dir        string
	segSize    int64
	segDur     time.Duration
	current    *segment
	segIndex   int
	lastRotate time.Time
	seq        uint64
}

// Open creates or reopens a journal directory. A reopen continues where
// the last run stopped: appends go to the highest existing segment and
// sequence numbers resume past the last journaled record, so replay stays
// monotonic across restarts.
func Open(cfg Config) (*WAL, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	index := 0
	files, err := filepath.Glob(filepath.Join(cfg.Dir, "segment-*.wal"))
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		// glob output is sorted and indexes are zero-padded
		last := filepath.Base(files[len(files)-1])
		if _, err := fmt.Sscanf(last, "segment-%d.wal", &index); err != nil {
			return nil, fmt.Errorf("wal: bad segment name %q", last)
		}
	}

	lastSeq, err := Replay(cfg.Dir, func(*Record) error { return nil })
	if err != nil {
		return nil, err
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segDur:     cfg.SegmentDuration,
		current:    seg,
		segIndex:   index,
		lastRotate: time.Now(),
		seq:        lastSeq,
	}, nil
}

// Append frames and writes one record, assigning it the next sequence
// number. Single-writer by design: only the Logger worker appends.
func (w *WAL) Append(r *Record) error {
	w.seq++
	r.Seq = w.seq

	payloadLen := uint32(len(r.Data))

	// Frame:
	// [type:1][seq:8][time:8][len:4][payload][crc:4]
	buf := make([]byte, 1+8+8+4+payloadLen+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[21:], r.Data)

	crc := CRC32(buf[:21+payloadLen])
	binary.BigEndian.PutUint32(buf[21+payloadLen:], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}

	if w.current.offset >= w.segSize || (w.segDur > 0 && time.Since(w.lastRotate) >= w.segDur) {
		return w.rotate()
	}
	return nil
}

func (w *WAL) rotate() error {
	_ = w.current.sync()
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}

	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

func (w *WAL) Sync() error {
	return w.current.sync()
}

func (w *WAL) Close() error {
	_ = w.current.sync()
	return w.current.close()
}
