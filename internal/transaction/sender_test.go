package transaction

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	solrpc "github.com/rovshanmuradov/solana-txprep/internal/blockchain/solbc/rpc"
)

func signedTx(t *testing.T) *solana.Transaction {
	t.Helper()
	key := newPayerKey(t)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{memoInstruction(key.PublicKey(), "send")},
		testBlockhash,
		solana.TransactionPayer(key.PublicKey()),
	)
	require.NoError(t, err)
	require.NoError(t, keySigner{key}.SignTransaction(tx))
	return tx
}

func newTestSender(client *mockClient, opts ...SenderOption) *Sender {
	opts = append([]SenderOption{
		WithSendDialer(dialerFor(client, nil)),
		WithSendBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
		WithSendMaxElapsed(time.Second),
	}, opts...)
	return NewSender(zap.NewNop(), opts...)
}

func TestSendRetriesTransientErrors(t *testing.T) {
	tx := signedTx(t)
	want := tx.Signatures[0]

	client := new(mockClient)
	transient := solrpc.Wrap(errors.New("connection reset by peer"), testEndpoint, "sendTransaction")
	client.On("SendTransactionWithOpts", mock.Anything, tx, mock.Anything).Return(solana.Signature{}, transient).Twice()
	client.On("SendTransactionWithOpts", mock.Anything, tx, mock.Anything).Return(want, nil).Once()

	metrics := NewMetrics(prometheus.NewRegistry())
	sig, err := newTestSender(client, WithSendMetrics(metrics)).Send(context.Background(), testEndpoint, tx)
	require.NoError(t, err)

	assert.Equal(t, want, sig)
	client.AssertNumberOfCalls(t, "SendTransactionWithOpts", 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.sendRetries))
}

func TestSendPreflightFailureIsPermanent(t *testing.T) {
	tx := signedTx(t)
	preflight := &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Blockhash not found",
		Data: map[string]interface{}{
			"err":  "BlockhashNotFound",
			"logs": []interface{}{"log A", "log B"},
		},
	}

	client := new(mockClient)
	client.On("SendTransactionWithOpts", mock.Anything, tx, mock.Anything).
		Return(solana.Signature{}, solrpc.Wrap(preflight, testEndpoint, "sendTransaction"))

	_, err := newTestSender(client).Send(context.Background(), testEndpoint, tx)

	var simErr *SimulationError
	require.ErrorAs(t, err, &simErr)
	assert.Equal(t, []string{"log A", "log B"}, simErr.Logs)
	assert.Equal(t, "BlockhashNotFound", simErr.Err)
	client.AssertNumberOfCalls(t, "SendTransactionWithOpts", 1)
}

func TestSendNonRetryableError(t *testing.T) {
	tx := signedTx(t)
	client := new(mockClient)
	client.On("SendTransactionWithOpts", mock.Anything, tx, mock.Anything).
		Return(solana.Signature{}, errors.New("invalid params"))

	_, err := newTestSender(client).Send(context.Background(), testEndpoint, tx)

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "sendTransaction", tErr.Op)
	var permanent *backoff.PermanentError
	assert.False(t, errors.As(err, &permanent))
	client.AssertNumberOfCalls(t, "SendTransactionWithOpts", 1)
}

func TestSendCriticalErrorIsNotRetried(t *testing.T) {
	tx := signedTx(t)
	gateway := jsonrpc.NewHTTPError(http.StatusServiceUnavailable, errors.New("Unauthorized: invalid api key"))
	sendErr := solrpc.Wrap(gateway, testEndpoint, "sendTransaction")
	require.True(t, solrpc.IsRetryableError(sendErr))

	client := new(mockClient)
	client.On("SendTransactionWithOpts", mock.Anything, tx, mock.Anything).Return(solana.Signature{}, sendErr)

	metrics := NewMetrics(prometheus.NewRegistry())
	_, err := newTestSender(client, WithSendMetrics(metrics)).Send(context.Background(), testEndpoint, tx)

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.ErrorIs(t, err, solrpc.ErrConnectionFailed)
	client.AssertNumberOfCalls(t, "SendTransactionWithOpts", 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.sendRetries))
}

func TestSendGivesUpAfterMaxElapsed(t *testing.T) {
	tx := signedTx(t)
	client := new(mockClient)
	client.On("SendTransactionWithOpts", mock.Anything, tx, mock.Anything).
		Return(solana.Signature{}, solrpc.Wrap(errors.New("i/o timeout"), testEndpoint, "sendTransaction"))

	s := newTestSender(client,
		WithSendBackOff(func() backoff.BackOff { return backoff.NewConstantBackOff(10 * time.Millisecond) }),
		WithSendMaxElapsed(35*time.Millisecond),
	)
	_, err := s.Send(context.Background(), testEndpoint, tx)

	assert.ErrorIs(t, err, solrpc.ErrTimeout)
	calls := len(client.Calls)
	assert.GreaterOrEqual(t, calls, 2)
	assert.LessOrEqual(t, calls, 4)
}

func TestSendValidation(t *testing.T) {
	client := new(mockClient)
	s := newTestSender(client)

	unsigned, err := solana.NewTransaction(
		[]solana.Instruction{memoInstruction(newPayerKey(t).PublicKey(), "x")},
		testBlockhash,
	)
	require.NoError(t, err)

	_, err = s.Send(context.Background(), testEndpoint, unsigned)
	assert.ErrorIs(t, err, ErrUnsignedTransaction)

	_, err = s.Send(context.Background(), "", signedTx(t))
	assert.ErrorIs(t, err, ErrMissingEndpoint)

	_, err = s.Send(context.Background(), testEndpoint, nil)
	assert.ErrorIs(t, err, ErrMissingInstructions)

	client.AssertNotCalled(t, "SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything)
}
