package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
)

// GenesisHash is the prevHash of the first entry.
var GenesisHash = hashOf("genesis")

// Entry is the immutable ledger projection of a finalized transaction.
// Sequence, PrevHash and Hash are assigned by the store at append time.
type Entry struct {
	Sequence      int64
	Timestamp     time.Time
	TransactionID id.TransactionID
	Employee      id.EmployeeID
	Amount        decimal.Decimal
	Currency      id.Currency
	Status        models.FinalStatus
	Reason        string
	Evidence      []Evidence
	PrevHash      string
	Hash          string
}

// Evidence is one agent's verdict as it stood when the entry was written.
type Evidence struct {
	Agent  models.Agent
	Status models.StepStatus
	Detail string
	Meta   map[string]string
}

func evidenceFrom(steps []models.AgentStep) []Evidence {
	out := make([]Evidence, len(steps))
	for i, st := range steps {
		out[i] = Evidence{Agent: st.Agent, Status: st.Status, Detail: st.Detail, Meta: maps.Clone(st.Meta)}
	}
	return out
}

// Clone deep-copies the evidence so committed entries never share maps with
// callers.
func (e Entry) Clone() Entry {
	if e.Evidence != nil {
		ev := make([]Evidence, len(e.Evidence))
		for i, item := range e.Evidence {
			item.Meta = maps.Clone(item.Meta)
			ev[i] = item
		}
		e.Evidence = ev
	}
	return e
}

// EntryFrom projects a resolved transaction into an unsealed entry.
func EntryFrom(tx *models.Transaction, at time.Time) Entry {
	return Entry{
		Timestamp:     at.UTC().Truncate(time.Microsecond),
		TransactionID: tx.ID,
		Employee:      tx.Employee,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Status:        tx.FinalStatus,
		Reason:        tx.Reason,
		Evidence:      evidenceFrom(tx.Steps),
	}
}

// Seal assigns the chain position and computes the entry hash.
func (e Entry) Seal(sequence int64, prevHash string) Entry {
	e.Sequence = sequence
	e.PrevHash = prevHash
	e.Hash = ChainHash(e)
	return e
}

// ChainHash hashes the entry content together with its predecessor's hash.
// Timestamps are hashed at microsecond precision so entries survive a
// round-trip through postgres timestamptz unchanged.
func ChainHash(e Entry) string {
	fields := []string{
		e.PrevHash,
		strconv.FormatInt(e.Sequence, 10),
		e.Timestamp.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
		e.TransactionID.String(),
		e.Employee.String(),
		e.Amount.String(),
		e.Currency.String(),
		e.Status.String(),
		e.Reason,
		evidenceDigest(e.Evidence),
	}
	return hashOf(strings.Join(fields, "\x1f"))
}

// evidenceDigest renders evidence canonically: steps in order, meta keys
// sorted. A nil and an empty meta map hash the same.
func evidenceDigest(evidence []Evidence) string {
	var b strings.Builder
	for _, ev := range evidence {
		b.WriteString(ev.Agent.String())
		b.WriteByte('\x1e')
		b.WriteString(ev.Status.String())
		b.WriteByte('\x1e')
		b.WriteString(ev.Detail)
		for _, k := range slices.Sorted(maps.Keys(ev.Meta)) {
			b.WriteByte('\x1e')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(ev.Meta[k])
		}
		b.WriteByte('\x1d')
	}
	return b.String()
}

func hashOf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// VerifyResult reports the outcome of a chain walk.
type VerifyResult struct {
	Valid    bool
	Entries  int
	BrokenAt *int64
	Message  string
}

// VerifyChain walks entries in order and reports the first broken link.
func VerifyChain(entries []Entry) VerifyResult {
	prev := GenesisHash
	for i, e := range entries {
		seq := e.Sequence
		switch {
		case e.Sequence != int64(i+1):
			return broken(len(entries), seq, "sequence gap at "+strconv.FormatInt(seq, 10))
		case e.PrevHash != prev:
			return broken(len(entries), seq, "prev_hash mismatch at "+strconv.FormatInt(seq, 10))
		case ChainHash(e) != e.Hash:
			return broken(len(entries), seq, "hash mismatch at "+strconv.FormatInt(seq, 10))
		}
		prev = e.Hash
	}
	return VerifyResult{Valid: true, Entries: len(entries), Message: "ledger chain intact"}
}

func broken(n int, seq int64, msg string) VerifyResult {
	return VerifyResult{Valid: false, Entries: n, BrokenAt: &seq, Message: msg}
}
