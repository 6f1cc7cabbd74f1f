package ledger

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"LedgerChat/internal/config"

	"github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestClassify(t *testing.T) {
	txID := hedera.TransactionIDGenerate(hedera.AccountID{Account: 1001})
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"precheck status", hedera.ErrHederaPreCheckStatus{TxID: txID, Status: hedera.StatusInvalidTopicID}, ErrRejected},
		{"receipt status", hedera.ErrHederaReceiptStatus{TxID: txID, Status: hedera.StatusInvalidSignature}, ErrRejected},
		{"too many chunks", hedera.ErrMaxChunksExceeded{Chunks: 30, MaxChunks: 20}, ErrRejected},
		{"network", errors.New("dial tcp: connection refused"), ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("failed to execute topic submission", tt.err)
			require.ErrorIs(t, err, tt.want)
			require.Contains(t, err.Error(), tt.err.Error())
			if tt.want == ErrRejected {
				require.Equal(t, "rejected", outcome(err))
			} else {
				require.Equal(t, "unavailable", outcome(err))
			}
		})
	}
}

func TestNewHederaClient_InvalidCredentials(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := tracenoop.NewTracerProvider().Tracer("test")
	meter := metricnoop.NewMeterProvider().Meter("test")

	tests := []struct {
		name string
		cfg  config.LedgerConfig
		want string
	}{
		{"account", config.LedgerConfig{AccountID: "not-an-account", PrivateKey: "x", TopicID: "0.0.2"}, "HEDERA_ACCOUNT_ID"},
		{"private key", config.LedgerConfig{AccountID: "0.0.1", PrivateKey: "zz", TopicID: "0.0.2"}, "HEDERA_PRIVATE_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHederaClient(tt.cfg, logger, tracer, meter)
			require.ErrorContains(t, err, tt.want)
		})
	}
}
