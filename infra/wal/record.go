package wal

import "time"

// RecordType defines journal intent.
type RecordType uint8

const (
	// RecordTrade journals one execution from the ledger.
	RecordTrade RecordType = iota
	// RecordStatus journals a terminal order status transition.
	RecordStatus
)

// Record is an immutable journal entry. Seq is assigned by the journal on
// append and is strictly monotonic across segments.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, data []byte) *Record {
	return &Record{
		Type: t,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
