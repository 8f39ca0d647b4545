package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrChainBroken is returned when a record's PreviousHash does not match the
// record stored before it.
var ErrChainBroken = errors.New("audit hash chain broken")

// hashEntry returns the hex SHA-256 of e's content, including its own link
// to the previous record.
func hashEntry(e *Entry) string {
	h := sha256.New()
	for _, field := range []string{
		e.PreviousHash,
		e.ID,
		e.EntryID,
		e.ActorID,
		string(e.Action),
		e.Reason,
		e.At.UTC().Format(time.RFC3339Nano),
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain checks that entries, in storage order, form an unbroken hash
// chain.
func VerifyChain(entries []Entry) error {
	prev := ""
	for i := range entries {
		if entries[i].PreviousHash != prev {
			return fmt.Errorf("%w at record %d (id %s)", ErrChainBroken, i, entries[i].ID)
		}
		prev = hashEntry(&entries[i])
	}
	return nil
}
