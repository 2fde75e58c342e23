package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-ledger/library"
	"library-ledger/library/memstore"
	"library-ledger/library/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) library.Store { return memstore.New() })
}

func TestClosedStoreRejectsWork(t *testing.T) {
	s := memstore.New()
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.Error(t, s.Ping(ctx))
	assert.Error(t, s.WithTx(ctx, func(library.Tx) error { return nil }))
}

func TestCanceledContextSkipsTransaction(t *testing.T) {
	s := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(library.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
