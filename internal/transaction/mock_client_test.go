package transaction

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-txprep/internal/blockchain"
	"github.com/rovshanmuradov/solana-txprep/internal/types"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	args := m.Called(ctx, commitment)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *mockClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts blockchain.SimulateOptions) (*blockchain.SimulationResult, error) {
	args := m.Called(ctx, tx, opts)
	res, _ := args.Get(0).(*blockchain.SimulationResult)
	return res, args.Error(1)
}

func (m *mockClient) GetPriorityFeeEstimate(ctx context.Context, serializedTx string, level types.PriorityLevel) (float64, error) {
	args := m.Called(ctx, serializedTx, level)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockClient) GetSignatureStatuses(ctx context.Context, searchHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	args := m.Called(ctx, searchHistory, signatures)
	res, _ := args.Get(0).(*rpc.GetSignatureStatusesResult)
	return res, args.Error(1)
}

func (m *mockClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

var _ blockchain.Client = (*mockClient)(nil)

// dialerFor returns a Dialer that hands out client and records endpoints.
func dialerFor(client blockchain.Client, endpoints *[]string) blockchain.Dialer {
	return func(endpoint string) blockchain.Client {
		if endpoints != nil {
			*endpoints = append(*endpoints, endpoint)
		}
		return client
	}
}

var testBlockhash = solana.Hash{7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7}

func newPayerKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

func memoInstruction(payer solana.PublicKey, text string) solana.Instruction {
	return solana.NewInstruction(
		solana.MemoProgramID,
		solana.AccountMetaSlice{solana.Meta(payer).SIGNER().WRITE()},
		[]byte(text),
	)
}

func unitsConsumed(n uint64) *uint64 {
	return &n
}

// keySigner signs with a fixed set of private keys.
type keySigner []solana.PrivateKey

func (s keySigner) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range s {
			if s[i].PublicKey().Equals(key) {
				return &s[i]
			}
		}
		return nil
	})
	return err
}
