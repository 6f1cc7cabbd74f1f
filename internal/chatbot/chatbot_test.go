package chatbot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"LedgerChat/internal/completion"
	"LedgerChat/internal/ledger"
	"LedgerChat/internal/message"
	"LedgerChat/internal/store"
	"LedgerChat/mocks"

	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newChatBot(t *testing.T, l Ledger, c Completer, s Store) *ChatBot {
	t.Helper()
	cb, err := New(l, c, s, discard,
		tracenoop.NewTracerProvider().Tracer("test"),
		metricnoop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return cb
}

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "chat.db"), discard)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSubmitMessage_RecordsBothSides(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	mockLedger := mocks.NewMockLedger(ctrl)
	mockCompleter := mocks.NewMockCompleter(ctrl)
	s := openStore(t)
	ctx := context.Background()

	gomock.InOrder(
		mockLedger.EXPECT().Submit(gomock.Any(), []byte("hello")).
			Return(ledger.Receipt{TransactionID: "0.0.42@100.1", Status: "SUCCESS"}, nil),
		mockCompleter.EXPECT().Complete(gomock.Any(), "hello").Return("hi there", nil),
		mockLedger.EXPECT().Submit(gomock.Any(), []byte("hi there")).
			Return(ledger.Receipt{TransactionID: "0.0.42@100.2", Status: "SUCCESS"}, nil),
	)

	txID, err := newChatBot(t, mockLedger, mockCompleter, s).SubmitMessage(ctx, "hello")
	req.NoError(err)
	req.Equal("0.0.42@100.1", txID)

	records, err := s.Search(ctx, "")
	req.NoError(err)
	req.Len(records, 2)
	req.Equal("0.0.42@100.1", records[0].ID)
	req.Equal("hello", records[0].Content)
	req.Equal(message.TypeUser, records[0].Type)
	req.Equal("0.0.42@100.2", records[1].ID)
	req.Equal("hi there", records[1].Content)
	req.Equal(message.TypeLLM, records[1].Type)
}

func TestSubmitMessage_BlankMessageContactsNobody(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLedger := mocks.NewMockLedger(ctrl)
	mockCompleter := mocks.NewMockCompleter(ctrl)
	mockStore := mocks.NewMockStore(ctrl)

	mockLedger.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(0)
	mockCompleter.EXPECT().Complete(gomock.Any(), gomock.Any()).Times(0)
	mockStore.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	cb := newChatBot(t, mockLedger, mockCompleter, mockStore)
	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := cb.SubmitMessage(context.Background(), msg)
		require.ErrorIs(t, err, ErrInvalidRequest)
	}
}

func TestSubmitMessage_FailureStopsChain(t *testing.T) {
	userReceipt := ledger.Receipt{TransactionID: "0.0.42@1.1", Status: "SUCCESS"}

	t.Run("should fail without storing when the ledger is unavailable", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockLedger := mocks.NewMockLedger(ctrl)
		mockCompleter := mocks.NewMockCompleter(ctrl)
		mockStore := mocks.NewMockStore(ctrl)

		mockLedger.EXPECT().Submit(gomock.Any(), gomock.Any()).
			Return(ledger.Receipt{}, ledger.ErrUnavailable)
		mockCompleter.EXPECT().Complete(gomock.Any(), gomock.Any()).Times(0)
		mockStore.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := newChatBot(t, mockLedger, mockCompleter, mockStore).SubmitMessage(context.Background(), "hello")
		req.ErrorIs(err, ledger.ErrUnavailable)
	})

	t.Run("should leave the user submission in place when the completion fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockLedger := mocks.NewMockLedger(ctrl)
		mockCompleter := mocks.NewMockCompleter(ctrl)
		s := openStore(t)

		mockLedger.EXPECT().Submit(gomock.Any(), []byte("hello")).Return(userReceipt, nil).Times(1)
		mockCompleter.EXPECT().Complete(gomock.Any(), "hello").
			Return("", completion.ErrUnavailable)

		_, err := newChatBot(t, mockLedger, mockCompleter, s).SubmitMessage(context.Background(), "hello")
		req.ErrorIs(err, completion.ErrUnavailable)

		records, err := s.Search(context.Background(), "")
		req.NoError(err)
		req.Empty(records)
	})

	t.Run("should not persist when the reply is rejected by the ledger", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockLedger := mocks.NewMockLedger(ctrl)
		mockCompleter := mocks.NewMockCompleter(ctrl)
		mockStore := mocks.NewMockStore(ctrl)

		gomock.InOrder(
			mockLedger.EXPECT().Submit(gomock.Any(), []byte("hello")).Return(userReceipt, nil),
			mockCompleter.EXPECT().Complete(gomock.Any(), "hello").Return("hi there", nil),
			mockLedger.EXPECT().Submit(gomock.Any(), []byte("hi there")).
				Return(ledger.Receipt{}, ledger.ErrRejected),
		)
		mockStore.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := newChatBot(t, mockLedger, mockCompleter, mockStore).SubmitMessage(context.Background(), "hello")
		req.ErrorIs(err, ledger.ErrRejected)
	})

	t.Run("should skip the reply append when the user append fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		mockLedger := mocks.NewMockLedger(ctrl)
		mockCompleter := mocks.NewMockCompleter(ctrl)
		mockStore := mocks.NewMockStore(ctrl)

		mockLedger.EXPECT().Submit(gomock.Any(), []byte("hello")).Return(userReceipt, nil)
		mockCompleter.EXPECT().Complete(gomock.Any(), "hello").Return("hi there", nil)
		mockLedger.EXPECT().Submit(gomock.Any(), []byte("hi there")).
			Return(ledger.Receipt{TransactionID: "0.0.42@1.2"}, nil)
		mockStore.EXPECT().Append(gomock.Any(), "0.0.42@1.1", "hello", message.TypeUser).
			Return(store.ErrDuplicateID)
		mockStore.EXPECT().Append(gomock.Any(), "0.0.42@1.2", gomock.Any(), gomock.Any()).Times(0)

		_, err := newChatBot(t, mockLedger, mockCompleter, mockStore).SubmitMessage(context.Background(), "hello")
		req.ErrorIs(err, store.ErrDuplicateID)
	})
}

func TestSearch(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockStore(ctrl)
	cb := newChatBot(t, mocks.NewMockLedger(ctrl), mocks.NewMockCompleter(ctrl), mockStore)

	t.Run("should delegate to the store", func(t *testing.T) {
		want := []message.Record{{ID: "b", Content: "hi there", Type: message.TypeLLM}}
		mockStore.EXPECT().Search(gomock.Any(), "hi").Return(want, nil)

		got, err := cb.Search(context.Background(), "hi")
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("should surface store failures", func(t *testing.T) {
		mockStore.EXPECT().Search(gomock.Any(), "").Return(nil, store.ErrUnavailable)

		_, err := cb.Search(context.Background(), "")
		require.ErrorIs(t, err, store.ErrUnavailable)
	})
}

func TestChat(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLedger := mocks.NewMockLedger(ctrl)
	mockCompleter := mocks.NewMockCompleter(ctrl)
	mockStore := mocks.NewMockStore(ctrl)
	cb := newChatBot(t, mockLedger, mockCompleter, mockStore)

	mockLedger.EXPECT().Submit(gomock.Any(), gomock.Any()).Times(0)
	mockStore.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	t.Run("should return the raw completion", func(t *testing.T) {
		mockCompleter.EXPECT().Complete(gomock.Any(), "hello").Return("  hi there\n", nil)

		reply, err := cb.Chat(context.Background(), "hello")
		require.NoError(t, err)
		require.Equal(t, "  hi there\n", reply)
	})

	t.Run("should reject a blank prompt", func(t *testing.T) {
		_, err := cb.Chat(context.Background(), "")
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("should surface completion failures", func(t *testing.T) {
		cause := errors.New("boom")
		mockCompleter.EXPECT().Complete(gomock.Any(), "hello").Return("", cause)

		_, err := cb.Chat(context.Background(), "hello")
		require.ErrorIs(t, err, cause)
	})
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil, nil, discard,
		tracenoop.NewTracerProvider().Tracer("test"),
		metricnoop.NewMeterProvider().Meter("test"))
	require.Error(t, err)
}
