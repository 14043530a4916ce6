package handler

import (
	"time"

	"efrn/internal/ledger"
	"efrn/internal/transaction/models"
)

// StepResponse is one entry of a transaction's audit trail.
type StepResponse struct {
	Agent     string            `json:"agent"`
	Status    string            `json:"status"`
	Detail    string            `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// TransactionResponse is returned by the create and override endpoints.
type TransactionResponse struct {
	ID          string         `json:"id"`
	Employee    string         `json:"employee"`
	Amount      string         `json:"amount"`
	Currency    string         `json:"currency"`
	Scenario    string         `json:"scenario,omitempty"`
	TrustScore  *int           `json:"trust_score"`
	Steps       []StepResponse `json:"steps"`
	FinalStatus string         `json:"final_status"`
	Reason      string         `json:"reason,omitempty"`
}

// LedgerEntryResponse is one row of GET /api/ledger.
type LedgerEntryResponse struct {
	Sequence      int64              `json:"sequence"`
	Timestamp     time.Time          `json:"timestamp"`
	TransactionID string             `json:"transaction_id"`
	Employee      string             `json:"employee"`
	Amount        string             `json:"amount"`
	Currency      string             `json:"currency"`
	Status        string             `json:"status"`
	Reason        string             `json:"reason,omitempty"`
	Evidence      []EvidenceResponse `json:"evidence"`
	PrevHash      string             `json:"prev_hash"`
	Hash          string             `json:"hash"`
}

// EvidenceResponse is one agent verdict sealed into a ledger entry.
type EvidenceResponse struct {
	Agent  string            `json:"agent"`
	Status string            `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Meta   map[string]string `json:"meta,omitempty"`
}

type LedgerResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
}

type VerifyResponse struct {
	Valid    bool   `json:"valid"`
	Entries  int    `json:"entries"`
	BrokenAt *int64 `json:"broken_at,omitempty"`
	Message  string `json:"message"`
}

func toTransactionResponse(tx *models.Transaction) *TransactionResponse {
	steps := make([]StepResponse, len(tx.Steps))
	for i, s := range tx.Steps {
		steps[i] = StepResponse{
			Agent:     s.Agent.String(),
			Status:    s.Status.String(),
			Detail:    s.Detail,
			Timestamp: s.Timestamp,
			Meta:      s.Meta,
		}
	}
	return &TransactionResponse{
		ID:          tx.ID.String(),
		Employee:    tx.Employee.String(),
		Amount:      tx.Amount.String(),
		Currency:    tx.Currency.String(),
		Scenario:    tx.Scenario,
		TrustScore:  tx.TrustScore,
		Steps:       steps,
		FinalStatus: tx.FinalStatus.String(),
		Reason:      tx.Reason,
	}
}

func toLedgerResponse(entries []ledger.Entry) *LedgerResponse {
	out := make([]LedgerEntryResponse, len(entries))
	for i, e := range entries {
		evidence := make([]EvidenceResponse, len(e.Evidence))
		for j, ev := range e.Evidence {
			evidence[j] = EvidenceResponse{
				Agent:  ev.Agent.String(),
				Status: ev.Status.String(),
				Detail: ev.Detail,
				Meta:   ev.Meta,
			}
		}
		out[i] = LedgerEntryResponse{
			Sequence:      e.Sequence,
			Timestamp:     e.Timestamp,
			TransactionID: e.TransactionID.String(),
			Employee:      e.Employee.String(),
			Amount:        e.Amount.String(),
			Currency:      e.Currency.String(),
			Status:        e.Status.String(),
			Reason:        e.Reason,
			Evidence:      evidence,
			PrevHash:      e.PrevHash,
			Hash:          e.Hash,
		}
	}
	return &LedgerResponse{Entries: out}
}

func toVerifyResponse(res ledger.VerifyResult) *VerifyResponse {
	return &VerifyResponse{
		Valid:    res.Valid,
		Entries:  res.Entries,
		BrokenAt: res.BrokenAt,
		Message:  res.Message,
	}
}
