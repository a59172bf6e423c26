package journal

import (
	"fmt"
	"strconv"
	"strings"
)

// Key layout:
//
//	state              pool accounting snapshot
//	meta:pool          deployment parameters
//	ev:{seq:020d}      encoded event log record
//	ledger:{name}      ledger snapshot
const (
	keyState      = "state"
	keyPoolInfo   = "meta:pool"
	prefixEvent   = "ev:"
	prefixLedger  = "ledger:"
	eventSeqWidth = 20
)

func eventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%0*d", prefixEvent, eventSeqWidth, seq))
}

func eventSeqFromKey(key []byte) (uint64, error) {
	s := string(key)
	if !strings.HasPrefix(s, prefixEvent) {
		return 0, fmt.Errorf("not an event key: %q", s)
	}
	return strconv.ParseUint(s[len(prefixEvent):], 10, 64)
}

func ledgerKey(name string) []byte {
	return []byte(prefixLedger + name)
}

// keyUpperBound returns the smallest key greater than every key with prefix.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
