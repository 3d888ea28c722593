package runner

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rovshanmuradov/solana-txprep/internal/blockchain"
	"github.com/rovshanmuradov/solana-txprep/internal/blockchain/computebudget"
	"github.com/rovshanmuradov/solana-txprep/internal/config"
	"github.com/rovshanmuradov/solana-txprep/internal/types"
)

// fakeNode answers every call with canned values.
type fakeNode struct {
	mu       sync.Mutex
	consumed uint64
	fee      float64
	simLogs  []string
	simErr   interface{}
	sent     []*solana.Transaction
	statuses map[solana.Signature]*rpc.SignatureStatusesResult
}

func (f *fakeNode) GetLatestBlockhash(context.Context, rpc.CommitmentType) (solana.Hash, error) {
	return solana.Hash{9}, nil
}

func (f *fakeNode) SimulateTransaction(context.Context, *solana.Transaction, blockchain.SimulateOptions) (*blockchain.SimulationResult, error) {
	consumed := f.consumed
	return &blockchain.SimulationResult{Err: f.simErr, Logs: f.simLogs, UnitsConsumed: &consumed}, nil
}

func (f *fakeNode) GetPriorityFeeEstimate(context.Context, string, types.PriorityLevel) (float64, error) {
	return f.fee, nil
}

func (f *fakeNode) GetSignatureStatuses(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{f.statuses[sigs[0]]}}, nil
}

func (f *fakeNode) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ blockchain.TransactionOptions) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("unsigned")
	}
	return tx.Signatures[0], nil
}

func testConfig(t *testing.T) (*config.Config, solana.PrivateKey) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	dir := t.TempDir()
	walletsFile := filepath.Join(dir, "wallets.csv")
	require.NoError(t, os.WriteFile(walletsFile, []byte("name,private_key\nmain,"+key.String()+"\n"), 0600))

	return &config.Config{
		RPCURL:          "https://rpc.test",
		WalletsFile:     walletsFile,
		Commitment:      "finalized",
		Tolerance:       1.5,
		PriorityLevel:   "High",
		OptimizeCompute: true,
		OptimizeFee:     true,
		PollMaxAttempts: 3,
		PollIntervalMs:  1,
		SendMaxElapsed:  100,
		LogFormat:       "pretty",
	}, key
}

func newTestRunner(cfg *config.Config, node *fakeNode, out *bytes.Buffer) *Runner {
	dial := func(string) blockchain.Client { return node }
	return NewRunner(cfg, zap.NewNop(), WithDialer(dial), WithOutput(out))
}

func TestRunPrintsEncodedPayload(t *testing.T) {
	cfg, key := testConfig(t)
	cfg.Encode = true
	node := &fakeNode{consumed: 1000, fee: 20_000}
	var out bytes.Buffer

	require.NoError(t, newTestRunner(cfg, node, &out).Run(context.Background(), Command{Memo: "hello"}))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	tx, err := solana.TransactionFromBytes(raw)
	require.NoError(t, err)

	require.Len(t, tx.Message.Instructions, 3)
	assert.Equal(t, computebudget.ProgramID, tx.Message.AccountKeys[tx.Message.Instructions[0].ProgramIDIndex])
	assert.Equal(t, []byte{2, 0xdc, 0x05, 0x00, 0x00}, []byte(tx.Message.Instructions[1].Data))
	assert.Equal(t, []byte("hello"), []byte(tx.Message.Instructions[2].Data))
	assert.Equal(t, key.PublicKey(), tx.Message.AccountKeys[0])
	assert.NoError(t, tx.VerifySignatures())
}

func TestRunSimulationFailurePrintsLogs(t *testing.T) {
	cfg, _ := testConfig(t)
	node := &fakeNode{simErr: "ProgramFailed", simLogs: []string{"log A", "log B"}}
	var out bytes.Buffer

	err := newTestRunner(cfg, node, &out).Run(context.Background(), Command{Memo: "x"})

	assert.ErrorContains(t, err, "failed to prepare transaction")
	assert.Equal(t, "log A\nlog B\n", out.String())
}

// finalizingNode reports every queried signature as finalized.
type finalizingNode struct {
	*fakeNode
}

func (f *finalizingNode) GetSignatureStatuses(context.Context, bool, ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{{
		Slot:               42,
		ConfirmationStatus: rpc.ConfirmationStatusFinalized,
	}}}, nil
}

func TestRunSendAndPoll(t *testing.T) {
	cfg, _ := testConfig(t)
	cfg.ReportFile = filepath.Join(t.TempDir(), "report.csv")
	node := &fakeNode{consumed: 1000, fee: 1}
	dial := func(string) blockchain.Client { return &finalizingNode{fakeNode: node} }
	var out bytes.Buffer

	core, logs := observer.New(zap.InfoLevel)
	r := NewRunner(cfg, zap.New(core), WithDialer(dial), WithOutput(&out))
	require.NoError(t, r.Run(context.Background(), Command{Memo: "send me", Send: true}))

	reported := logs.FilterMessage("Report updated").All()
	require.Len(t, reported, 1)
	assert.Equal(t, uint64(1), reported[0].ContextMap()["records"])

	require.Len(t, node.sent, 1)
	sig := node.sent[0].Signatures[0]
	assert.Equal(t, sig.String()+" finalized transaction finalized\n", out.String())

	f, err := os.Open(cfg.ReportFile)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, reportHeader, rows[0])
	assert.Equal(t, []string{sig.String(), "finalized", "1", "42", "transaction finalized"}, rows[1][1:])
}

func TestRunWatch(t *testing.T) {
	cfg, _ := testConfig(t)
	finalized := solana.Signature{1}
	pending := solana.Signature{2}
	node := &fakeNode{statuses: map[solana.Signature]*rpc.SignatureStatusesResult{
		finalized: {Slot: 10, ConfirmationStatus: rpc.ConfirmationStatusFinalized},
	}}
	var out bytes.Buffer

	err := newTestRunner(cfg, node, &out).Run(context.Background(), Command{
		Watch: []string{finalized.String(), pending.String()},
	})

	assert.ErrorContains(t, err, "1 of 2 transactions not finalized")
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, finalized.String()+" finalized transaction finalized", lines[0])
	assert.Equal(t, pending.String()+" timed_out 0.003 seconds max wait reached", lines[1])
}

func TestRunWatchRejectsBadSignature(t *testing.T) {
	cfg, _ := testConfig(t)
	var out bytes.Buffer
	err := newTestRunner(cfg, &fakeNode{}, &out).Run(context.Background(), Command{Watch: []string{"not-a-signature"}})
	assert.ErrorContains(t, err, "invalid signature")
}

func TestLoadWallet(t *testing.T) {
	cfg, key := testConfig(t)
	r := newTestRunner(cfg, &fakeNode{}, &bytes.Buffer{})

	w, err := r.loadWallet()
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)

	cfg.Wallet = "other"
	_, err = r.loadWallet()
	assert.ErrorContains(t, err, "wallet not found")

	second, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	f, err := os.OpenFile(cfg.WalletsFile, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("second," + second.String() + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg.Wallet = ""
	_, err = r.loadWallet()
	assert.ErrorContains(t, err, "wallet must be set")

	cfg.Wallet = "second"
	w, err = r.loadWallet()
	require.NoError(t, err)
	assert.Equal(t, second.PublicKey(), w.PublicKey)

	cfg.WalletsFile = filepath.Join(t.TempDir(), "missing.csv")
	_, err = r.loadWallet()
	assert.ErrorContains(t, err, "failed to load wallets")
}

func TestRunnerSharesPooledClients(t *testing.T) {
	cfg, _ := testConfig(t)
	r := NewRunner(cfg, zap.NewNop())

	client := r.dial(cfg.RPCURL)
	assert.Same(t, client, r.dial(cfg.RPCURL))

	r.Shutdown()
	assert.NotSame(t, client, r.dial(cfg.RPCURL))
}
