package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vialba/go-elect/pkg/elect/types"
)

var (
	// ErrUnknownPrefix is returned for a payload no variant claims.
	ErrUnknownPrefix = errors.New("unknown datagram prefix")

	// ErrDatagramTooLong is returned when a payload exceeds the wire cap.
	ErrDatagramTooLong = errors.New("datagram exceeds maximum length")

	// ErrBadAddress is returned for a missing or oversized address field.
	ErrBadAddress = errors.New("malformed address field")

	// ErrBadElectionValue is returned when an le_ack carries a value
	// outside [1, 999].
	ErrBadElectionValue = errors.New("election value out of range")
)

const (
	prefixNDInit  = "nd_init"
	prefixNDAck   = "nd_ack:"
	prefixNDHello = "nd_hello:"
	prefixLEInit  = "le_init"
	prefixLEQuery = "le_m?:"
	prefixLEAck   = "le_ack:"
)

// Datagram is one parsed protocol payload. The grammar is a fixed set of
// ASCII prefixes, so each variant knows how to put itself back on the wire.
type Datagram interface {
	Encode() []byte
}

// NDInit asks every listener to respond with its address.
type NDInit struct{}

// NDAck announces the sender address in response to an NDInit.
type NDAck struct {
	Addr string
}

// NDHello directly acknowledges a newly seen neighbor.
type NDHello struct {
	Addr string
}

// LEInit asks every listener for its current best election value.
type LEInit struct{}

// LEQuery is an alternative request for the current best. Accepted for
// compatibility; this implementation never sends it.
type LEQuery struct{}

// LEAck reports the sender's current best pair and its own address.
type LEAck struct {
	Min    uint16
	Leader string
	Sender string
}

// Implements the Datagram interface.
func (NDInit) Encode() []byte {
	return []byte(prefixNDInit)
}

// Implements the Datagram interface.
func (d NDAck) Encode() []byte {
	return []byte(prefixNDAck + d.Addr)
}

// Implements the Datagram interface.
func (d NDHello) Encode() []byte {
	return []byte(prefixNDHello + d.Addr)
}

// Implements the Datagram interface.
func (LEInit) Encode() []byte {
	return []byte(prefixLEInit)
}

// Implements the Datagram interface.
func (LEQuery) Encode() []byte {
	return []byte(prefixLEQuery)
}

// Implements the Datagram interface. The election value is zero padded to
// three digits so the payload round-trips byte for byte.
func (d LEAck) Encode() []byte {
	return []byte(fmt.Sprintf("%s%03d:%s;%s", prefixLEAck, d.Min, d.Leader, d.Sender))
}

// ParseDatagram dispatches the payload on its prefix and returns the typed
// variant. Callers drop malformed payloads silently.
func ParseDatagram(payload []byte) (Datagram, error) {
	if len(payload) > types.MaxDatagramLen {
		return nil, ErrDatagramTooLong
	}
	s := string(payload)
	switch {
	case s == prefixNDInit:
		return NDInit{}, nil
	case s == prefixLEInit:
		return LEInit{}, nil
	case s == prefixLEQuery:
		return LEQuery{}, nil
	case strings.HasPrefix(s, prefixNDAck):
		addr, err := parseAddress(s[len(prefixNDAck):])
		if err != nil {
			return nil, err
		}
		return NDAck{Addr: addr}, nil
	case strings.HasPrefix(s, prefixNDHello):
		addr, err := parseAddress(s[len(prefixNDHello):])
		if err != nil {
			return nil, err
		}
		return NDHello{Addr: addr}, nil
	case strings.HasPrefix(s, prefixLEAck):
		return parseLEAck(s[len(prefixLEAck):])
	default:
		return nil, ErrUnknownPrefix
	}
}

func parseAddress(field string) (string, error) {
	if field == "" || len(field) > types.MaxAddressLen {
		return "", ErrBadAddress
	}
	return field, nil
}

// An le_ack body reads <DDD>:<leader>;<sender> with DDD zero padded to
// three digits.
func parseLEAck(body string) (Datagram, error) {
	value, rest, ok := strings.Cut(body, ":")
	if !ok {
		return nil, ErrBadElectionValue
	}
	min, err := strconv.Atoi(value)
	if err != nil || min <= 0 || min > 999 {
		return nil, ErrBadElectionValue
	}
	leader, sender, ok := strings.Cut(rest, ";")
	if !ok {
		return nil, ErrBadAddress
	}
	if _, err := parseAddress(leader); err != nil {
		return nil, err
	}
	if _, err := parseAddress(sender); err != nil {
		return nil, err
	}
	return LEAck{Min: uint16(min), Leader: leader, Sender: sender}, nil
}
