package metastore_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/fyrsmithlabs/docspace/internal/metastore"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()

	srv, err := metastore.NewEmbeddedServer(metastore.ServerOptions{
		Port:     -1,
		StoreDir: t.TempDir(),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Shutdown)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestJetStreamStore(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	nc := startTestNATS(t)

	bucket := 0
	runStoreContract(t, func(t *testing.T) metastore.Store {
		bucket++
		s, err := metastore.NewJetStreamStore(context.Background(), nc, metastore.JetStreamConfig{
			Bucket:   fmt.Sprintf("test_%d", bucket),
			InMemory: true,
		})
		require.NoError(t, err)
		return s
	})
}

func TestNewJetStreamStore_RequiresConn(t *testing.T) {
	_, err := metastore.NewJetStreamStore(context.Background(), nil, metastore.JetStreamConfig{})
	require.Error(t, err)
}
