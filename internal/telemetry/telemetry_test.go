package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitLogger_WritesJSONToRotatedFile(t *testing.T) {
	req := require.New(t)
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	dir := t.TempDir()
	logger, closer, err := InitLogger(dir, true)
	req.NoError(err)

	logger.Debug("ledger submission acknowledged", "transaction_id", "0.0.1@1.2")
	req.NoError(closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, ServiceName+".log"))
	req.NoError(err)
	req.Contains(string(data), `"msg":"ledger submission acknowledged"`)
	req.Contains(string(data), `"service":"ledgerchat"`)
}

func TestInitTelemetry(t *testing.T) {
	req := require.New(t)
	dir := filepath.Join(t.TempDir(), "nested")

	tracer, meter, cleanup, err := InitTelemetry(context.Background(), dir)
	req.NoError(err)
	req.NotNil(tracer)
	req.NotNil(meter)

	_, span := tracer.Start(context.Background(), "test")
	span.End()
	cleanup()

	_, err = os.Stat(filepath.Join(dir, ServiceName+"_traces.log"))
	req.NoError(err)
}
