package service

import (
	"fmt"
	"strconv"
	"strings"

	"vela/domain/book"
)

type Op int

const (
	OpPlace Op = iota
	OpCancel
	OpModify
)

// Instruction is the canonical form of one text-protocol line. Formats:
//
//	BUY|SELL LIMIT|MARKET <price> <qty>
//	CANCEL <orderID>
//	MODIFY <orderID> <qty> <price>
type Instruction struct {
	Op      Op
	Side    book.Side
	Type    book.OrderType
	Price   int64
	Qty     int64
	OrderID uint64
}

// ParseInstruction validates a raw line before any Order is constructed.
// Malformed input never produces a partially-built instruction.
func ParseInstruction(line string) (Instruction, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instruction{}, fmt.Errorf("empty instruction")
	}

	switch strings.ToUpper(fields[0]) {
	case "CANCEL":
		if len(fields) != 2 {
			return Instruction{}, fmt.Errorf("cancel: want 2 fields, got %d", len(fields))
		}
		id, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return Instruction{}, fmt.Errorf("cancel: bad order id %q", fields[1])
		}
		return Instruction{Op: OpCancel, OrderID: id}, nil

	case "MODIFY":
		if len(fields) != 4 {
			return Instruction{}, fmt.Errorf("modify: want 4 fields, got %d", len(fields))
		}
		id, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return Instruction{}, fmt.Errorf("modify: bad order id %q", fields[1])
		}
		qty, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Instruction{}, fmt.Errorf("modify: bad quantity %q", fields[2])
		}
		price, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return Instruction{}, fmt.Errorf("modify: bad price %q", fields[3])
		}
		return Instruction{Op: OpModify, OrderID: id, Qty: qty, Price: price}, nil

	case "BUY", "SELL":
		if len(fields) != 4 {
			return Instruction{}, fmt.Errorf("order: want 4 fields, got %d", len(fields))
		}
		in := Instruction{Op: OpPlace}
		if strings.ToUpper(fields[0]) == "BUY" {
			in.Side = book.Buy
		} else {
			in.Side = book.Sell
		}
		switch strings.ToUpper(fields[1]) {
		case "LIMIT":
			in.Type = book.Limit
		case "MARKET":
			in.Type = book.Market
		default:
			return Instruction{}, fmt.Errorf("order: unknown type %q", fields[1])
		}
		price, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Instruction{}, fmt.Errorf("order: bad price %q", fields[2])
		}
		qty, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return Instruction{}, fmt.Errorf("order: bad quantity %q", fields[3])
		}
		in.Price = price
		in.Qty = qty
		return in, nil

	default:
		return Instruction{}, fmt.Errorf("unknown instruction %q", fields[0])
	}
}
