package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"LedgerChat/internal/config"

	"github.com/hashgraph/hedera-sdk-go/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrUnavailable means the network could not be reached or did not answer in time.
	ErrUnavailable = errors.New("ledger unavailable")
	// ErrRejected means the network answered and refused the submission.
	ErrRejected = errors.New("ledger rejected submission")
)

// Receipt is the consensus acknowledgment of one topic submission
type Receipt struct {
	TransactionID string
	Status        string
}

// HederaClient submits messages to a single Hedera Consensus Service topic
type HederaClient struct {
	client      *hedera.Client
	topicID     hedera.TopicID
	logger      *slog.Logger
	tracer      trace.Tracer
	submissions metric.Int64Counter
}

// NewHederaClient parses the operator credentials and topic, and builds a
// client for the configured network.
func NewHederaClient(cfg config.LedgerConfig, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) (*HederaClient, error) {
	accountID, err := hedera.AccountIDFromString(cfg.AccountID)
	if err != nil {
		return nil, fmt.Errorf("invalid HEDERA_ACCOUNT_ID: %w", err)
	}
	privateKey, err := hedera.PrivateKeyFromString(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid HEDERA_PRIVATE_KEY: %w", err)
	}
	topicID, err := hedera.TopicIDFromString(cfg.TopicID)
	if err != nil {
		return nil, fmt.Errorf("invalid HEDERA_TOPIC_ID: %w", err)
	}

	submissions, err := meter.Int64Counter(
		"ledger.submissions",
		metric.WithDescription("Topic message submissions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	client, err := hedera.ClientForName(cfg.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Network, err)
	}
	client.SetOperator(accountID, privateKey)

	logger.Info("created hedera client", "network", cfg.Network, "operator", accountID.String(), "topic", topicID.String())
	return &HederaClient{
		client:      client,
		topicID:     topicID,
		logger:      logger,
		tracer:      tracer,
		submissions: submissions,
	}, nil
}

// Submit publishes message to the topic and waits for its receipt
func (h *HederaClient) Submit(ctx context.Context, message []byte) (Receipt, error) {
	ctx, span := h.tracer.Start(ctx, "ledger.submit",
		trace.WithAttributes(
			attribute.String("ledger.topic_id", h.topicID.String()),
			attribute.Int("ledger.message_size", len(message)),
		))
	defer span.End()

	receipt, err := h.submit(ctx, message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
		h.logger.Error("ledger submission failed", "topic", h.topicID.String(), "error", err)
		return Receipt{}, err
	}

	span.SetAttributes(attribute.String("ledger.transaction_id", receipt.TransactionID))
	h.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "acked")))
	h.logger.Info("ledger submission acknowledged",
		"transaction_id", receipt.TransactionID, "status", receipt.Status)
	return receipt, nil
}

func (h *HederaClient) submit(ctx context.Context, message []byte) (Receipt, error) {
	// the SDK is not context aware; honour cancellation before each network round trip
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	resp, err := hedera.NewTopicMessageSubmitTransaction().
		SetTopicID(h.topicID).
		SetMessage(message).
		Execute(h.client)
	if err != nil {
		return Receipt{}, classify("failed to execute topic submission", err)
	}

	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	receipt, err := resp.GetReceipt(h.client)
	if err != nil {
		return Receipt{}, classify("failed to get receipt", err)
	}

	return Receipt{
		TransactionID: resp.TransactionID.String(),
		Status:        receipt.Status.String(),
	}, nil
}

// Close releases the client's network connections
func (h *HederaClient) Close() error {
	return h.client.Close()
}

// classify maps SDK errors onto ErrRejected when the network refused the
// transaction, ErrUnavailable otherwise.
func classify(msg string, err error) error {
	var (
		precheck  hedera.ErrHederaPreCheckStatus
		receipt   hedera.ErrHederaReceiptStatus
		maxChunks hedera.ErrMaxChunksExceeded
	)
	switch {
	case errors.As(err, &precheck), errors.As(err, &receipt), errors.As(err, &maxChunks):
		return fmt.Errorf("%w: %s: %w", ErrRejected, msg, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, msg, err)
	}
}

func outcome(err error) string {
	if errors.Is(err, ErrRejected) {
		return "rejected"
	}
	return "unavailable"
}
