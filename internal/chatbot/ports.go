//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=../../mocks/mock_ports.go -package=mocks

package chatbot

import (
	"context"

	"LedgerChat/internal/ledger"
	"LedgerChat/internal/message"
)

// Ledger records opaque messages on a consensus topic
type Ledger interface {
	Submit(ctx context.Context, message []byte) (ledger.Receipt, error)
}

// Completer turns a prompt into a model completion
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Store persists and searches message records
type Store interface {
	Append(ctx context.Context, id, content string, typ message.Type) error
	Search(ctx context.Context, query string) ([]message.Record, error)
}
