package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "efrn/pkg/domain-errors"
)

// maxIdentifierLength bounds opaque identifiers accepted at trust boundaries.
const maxIdentifierLength = 64

// TransactionIDPrefix is the EFRN identifier scheme prefix.
const TransactionIDPrefix = "EFRN-"

// EmployeeID identifies the employee a transaction is raised for.
// Invariant: non-empty, printable, at most 64 bytes, no surrounding whitespace.
type EmployeeID string

// ApproverID identifies the human approver submitting an override.
type ApproverID string

// TransactionID identifies a single transaction processed by the orchestrator.
type TransactionID string

// ParseEmployeeID validates an employee identifier from external input.
func ParseEmployeeID(s string) (EmployeeID, error) {
	v, err := parseIdentifier("employee", s)
	if err != nil {
		return "", err
	}
	return EmployeeID(v), nil
}

// ParseApproverID validates an approver identity from external input.
// Approver identities are case-insensitive role names and are upper-cased.
func ParseApproverID(s string) (ApproverID, error) {
	v, err := parseIdentifier("approver", s)
	if err != nil {
		return "", err
	}
	return ApproverID(strings.ToUpper(v)), nil
}

func parseIdentifier(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > maxIdentifierLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" must be at most 64 characters")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, field+" must be valid UTF-8")
	}
	for _, r := range s {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, field+" contains invalid characters")
		}
	}
	return s, nil
}

// NewTransactionID generates a fresh EFRN identifier.
func NewTransactionID() TransactionID {
	return TransactionID(TransactionIDPrefix + uuid.NewString())
}

// ParseTransactionID validates an EFRN identifier.
func ParseTransactionID(s string) (TransactionID, error) {
	rest, ok := strings.CutPrefix(s, TransactionIDPrefix)
	if !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "transaction id must start with "+TransactionIDPrefix)
	}
	parsed, err := uuid.Parse(rest)
	if err != nil || parsed == uuid.Nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "transaction id must carry a valid UUID")
	}
	return TransactionID(TransactionIDPrefix + parsed.String()), nil
}

func (id EmployeeID) String() string    { return string(id) }
func (id ApproverID) String() string    { return string(id) }
func (id TransactionID) String() string { return string(id) }

// IsNil returns true if the identifier is empty.
func (id EmployeeID) IsNil() bool    { return id == "" }
func (id TransactionID) IsNil() bool { return id == "" }
