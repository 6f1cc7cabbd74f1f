package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"LedgerChat/internal/message"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidRequest marks client input the chain refuses to start with
var ErrInvalidRequest = errors.New("invalid request")

// State is a step of the submit-message chain
type State string

const (
	StateReceived                 State = "received"
	StateLedgerSubmitUserPending  State = "ledger_submit_user_pending"
	StateLedgerSubmitUserAcked    State = "ledger_submit_user_acked"
	StateCompletionPending        State = "completion_pending"
	StateCompletionReceived       State = "completion_received"
	StateLedgerSubmitReplyPending State = "ledger_submit_reply_pending"
	StateLedgerSubmitReplyAcked   State = "ledger_submit_reply_acked"
	StatePersistPending           State = "persist_pending"
	StateDone                     State = "done"
	StateFailed                   State = "failed"
)

// ChatBot orchestrates the ledger, the completion backend and the store.
// It holds no per-request state; all handles are shared and injected.
type ChatBot struct {
	ledger    Ledger
	completer Completer
	store     Store
	logger    *slog.Logger
	tracer    trace.Tracer
	requests  metric.Int64Counter
}

// New creates a ChatBot over already constructed collaborators
func New(l Ledger, c Completer, s Store, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) (*ChatBot, error) {
	if l == nil || c == nil || s == nil {
		return nil, fmt.Errorf("ledger, completer and store are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	requests, err := meter.Int64Counter(
		"chat.requests",
		metric.WithDescription("Chat operations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &ChatBot{
		ledger:    l,
		completer: c,
		store:     s,
		logger:    logger,
		tracer:    tracer,
		requests:  requests,
	}, nil
}

// submission tracks one run of the submit-message chain
type submission struct {
	logger *slog.Logger
	span   trace.Span
	state  State
}

func (s *submission) enter(state State) {
	s.state = state
	s.span.AddEvent(string(state))
	s.logger.Debug("state transition", "state", state)
}

// fail moves to StateFailed, remembering the step that broke
func (s *submission) fail(err error) error {
	failedAt := s.state
	s.state = StateFailed
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.logger.Error("submit message failed", "failed_at", failedAt, "error", err)
	return err
}

// SubmitMessage records message on the ledger, asks the model for a reply,
// records the reply on the ledger and persists both. It returns the user
// message's transaction id.
//
// Steps already completed are not undone on failure: a message may be on the
// ledger without a local record.
func (cb *ChatBot) SubmitMessage(ctx context.Context, msg string) (txID string, err error) {
	ctx, span := cb.tracer.Start(ctx, "chatbot.submit_message")
	defer span.End()

	sub := &submission{logger: cb.logger, span: span}
	defer func() { cb.count(ctx, "submit_message", err) }()

	sub.enter(StateReceived)
	if strings.TrimSpace(msg) == "" {
		return "", sub.fail(fmt.Errorf("%w: message is required", ErrInvalidRequest))
	}

	sub.enter(StateLedgerSubmitUserPending)
	userReceipt, err := cb.ledger.Submit(ctx, []byte(msg))
	if err != nil {
		return "", sub.fail(fmt.Errorf("failed to submit message to ledger: %w", err))
	}
	sub.logger = sub.logger.With("user_transaction_id", userReceipt.TransactionID)
	sub.enter(StateLedgerSubmitUserAcked)

	sub.enter(StateCompletionPending)
	reply, err := cb.completer.Complete(ctx, msg)
	if err != nil {
		return "", sub.fail(fmt.Errorf("failed to get AI response: %w", err))
	}
	sub.enter(StateCompletionReceived)

	sub.enter(StateLedgerSubmitReplyPending)
	replyReceipt, err := cb.ledger.Submit(ctx, []byte(reply))
	if err != nil {
		return "", sub.fail(fmt.Errorf("failed to submit AI response to ledger: %w", err))
	}
	sub.logger = sub.logger.With("reply_transaction_id", replyReceipt.TransactionID)
	sub.enter(StateLedgerSubmitReplyAcked)

	sub.enter(StatePersistPending)
	if err := cb.store.Append(ctx, userReceipt.TransactionID, msg, message.TypeUser); err != nil {
		return "", sub.fail(fmt.Errorf("failed to store user message: %w", err))
	}
	if err := cb.store.Append(ctx, replyReceipt.TransactionID, reply, message.TypeLLM); err != nil {
		return "", sub.fail(fmt.Errorf("failed to store AI response: %w", err))
	}

	sub.enter(StateDone)
	span.SetAttributes(
		attribute.String("ledger.user_transaction_id", userReceipt.TransactionID),
		attribute.String("ledger.reply_transaction_id", replyReceipt.TransactionID),
	)
	sub.logger.Info("message exchange recorded")
	return userReceipt.TransactionID, nil
}

// Search returns stored messages containing query, oldest first
func (cb *ChatBot) Search(ctx context.Context, query string) (records []message.Record, err error) {
	ctx, span := cb.tracer.Start(ctx, "chatbot.search", trace.WithAttributes(attribute.String("query", query)))
	defer span.End()
	defer func() { cb.count(ctx, "search", err) }()

	records, err = cb.store.Search(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		cb.logger.Error("search failed", "query", query, "error", err)
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}
	return records, nil
}

// Chat returns the model's completion for prompt without touching the ledger
// or the store
func (cb *ChatBot) Chat(ctx context.Context, prompt string) (reply string, err error) {
	ctx, span := cb.tracer.Start(ctx, "chatbot.chat")
	defer span.End()
	defer func() { cb.count(ctx, "chat", err) }()

	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}

	reply, err = cb.completer.Complete(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		cb.logger.Error("chat failed", "error", err)
		return "", fmt.Errorf("failed to get AI response: %w", err)
	}
	return reply, nil
}

func (cb *ChatBot) count(ctx context.Context, operation string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrInvalidRequest):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	}
	cb.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
