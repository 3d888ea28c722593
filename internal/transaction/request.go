package transaction

import (
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-txprep/internal/types"
)

// DefaultTolerance is applied to simulated consumption when a request leaves it unset.
const DefaultTolerance = 1.1

// Signer signs a compiled transaction in place.
type Signer interface {
	SignTransaction(tx *solana.Transaction) error
}

// TxRequest describes one transaction to prepare.
type TxRequest struct {
	Endpoint      string
	FeePayer      solana.PublicKey
	Instructions  []solana.Instruction
	Signer        Signer
	AddressTables map[solana.PublicKey]solana.PublicKeySlice

	// Tolerance multiplies simulated consumption. Zero means DefaultTolerance.
	// Values below 1.0 are accepted and will under-provision.
	Tolerance     float64
	PriorityLevel types.PriorityLevel

	OptimizeCompute bool
	OptimizeFee     bool
	Serialize       bool
	// Encode implies Serialize.
	Encode bool
}

func (r *TxRequest) validate() error {
	if r.Endpoint == "" {
		return &ValidationError{Field: "endpoint", Err: ErrMissingEndpoint}
	}
	if r.FeePayer.IsZero() {
		return &ValidationError{Field: "fee_payer", Err: ErrMissingFeePayer}
	}
	if len(r.Instructions) == 0 {
		return &ValidationError{Field: "instructions", Err: ErrMissingInstructions}
	}
	if r.Tolerance < 0 || math.IsNaN(r.Tolerance) || math.IsInf(r.Tolerance, 0) {
		return &ValidationError{Field: "tolerance", Err: ErrInvalidTolerance}
	}
	if _, err := types.ParsePriorityLevel(string(r.PriorityLevel)); err != nil {
		return &ValidationError{Field: "priority_level", Err: err}
	}
	return nil
}

func (r *TxRequest) tolerance() float64 {
	if r.Tolerance == 0 {
		return DefaultTolerance
	}
	return r.Tolerance
}

func (r *TxRequest) estimateInput(instructions []solana.Instruction, blockhash solana.Hash) EstimateInput {
	return EstimateInput{
		Payer:         r.FeePayer,
		Instructions:  instructions,
		Blockhash:     blockhash,
		AddressTables: r.AddressTables,
	}
}

// PayloadFormat tells which TxResult field carries the payload.
type PayloadFormat int

const (
	FormatTransaction PayloadFormat = iota
	FormatRaw
	FormatBase64
)

func (f PayloadFormat) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatBase64:
		return "base64"
	default:
		return "transaction"
	}
}

// TxResult holds exactly one payload form, selected by Format, plus the
// inputs that were resolved while building it.
type TxResult struct {
	Format      PayloadFormat
	Transaction *solana.Transaction
	Raw         []byte
	Encoded     string

	// Instructions is the final ordered sequence, directives included.
	Instructions []solana.Instruction
	Blockhash    solana.Hash
	// ComputeUnits and PriorityFee are zero when the matching optimization was off.
	ComputeUnits uint32
	PriorityFee  uint64
	Signed       bool
}

// Payload returns whichever form Format selects.
func (r *TxResult) Payload() interface{} {
	switch r.Format {
	case FormatRaw:
		return r.Raw
	case FormatBase64:
		return r.Encoded
	default:
		return r.Transaction
	}
}
