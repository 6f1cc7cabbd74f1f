package message

import "time"

// Type tags who authored a record
type Type string

const (
	TypeUser Type = "user"
	TypeLLM  Type = "llm"
)

// Valid reports whether t is one of the known tags.
func (t Type) Valid() bool {
	return t == TypeUser || t == TypeLLM
}

// Record represents a single persisted chat message.
// ID is the ledger transaction id the content was submitted under.
type Record struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}
