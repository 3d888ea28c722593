// internal/transaction/errors.go
package transaction

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-txprep/internal/types"
)

var (
	ErrMissingEndpoint     = errors.New("endpoint is required")
	ErrMissingFeePayer     = errors.New("fee payer is required")
	ErrMissingInstructions = errors.New("at least one instruction is required")
	ErrInvalidTolerance    = errors.New("tolerance must be a finite non-negative number")
	ErrMissingSignature    = errors.New("signature is required")
)

// ValidationError is returned before any network call when a request is incomplete.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transaction request: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SimulationError means the node executed the dry run and rejected it.
// Logs are the simulation log lines exactly as reported.
type SimulationError struct {
	Err  interface{}
	Logs []string
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("transaction simulation failed: %v", e.Err)
}

// FeeEstimationError wraps any transport or parse failure of the fee oracle.
type FeeEstimationError struct {
	Level types.PriorityLevel
	Err   error
}

func (e *FeeEstimationError) Error() string {
	return fmt.Sprintf("priority fee estimation failed (level %s): %v", e.Level, e.Err)
}

func (e *FeeEstimationError) Unwrap() error {
	return e.Err
}

// TransportError covers every other failed RPC call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// OnChainError reports a transaction that was finalized with an execution error.
type OnChainError struct {
	Signature solana.Signature
	Err       interface{}
}

func (e *OnChainError) Error() string {
	return fmt.Sprintf("transaction %s failed on chain: %v", e.Signature, e.Err)
}

// Logs returns the simulation logs carried by err, if any.
func Logs(err error) []string {
	var simErr *SimulationError
	if errors.As(err, &simErr) {
		return simErr.Logs
	}
	return nil
}
