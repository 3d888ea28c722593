// internal/blockchain/computebudget/computebudget.go
package computebudget

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	cb "github.com/gagliardetto/solana-go/programs/compute-budget"
)

var ProgramID = cb.ProgramID

const (
	SetComputeUnitLimit = cb.Instruction_SetComputeUnitLimit
	SetComputeUnitPrice = cb.Instruction_SetComputeUnitPrice
)

// MaxComputeUnitLimit is the largest per-transaction limit the network accepts.
const MaxComputeUnitLimit uint32 = 1_400_000

var (
	ErrNotComputeBudget   = errors.New("not a compute budget instruction")
	ErrUnexpectedVariant  = errors.New("unexpected compute budget instruction")
	ErrInvalidInstruction = errors.New("invalid compute budget instruction data")
)

// LimitInstruction создает директиву лимита compute units
func LimitInstruction(units uint32) solana.Instruction {
	return cb.NewSetComputeUnitLimitInstruction(units).Build()
}

// PriceInstruction создает директиву цены compute unit в микролампортах
func PriceInstruction(microLamports uint64) solana.Instruction {
	return cb.NewSetComputeUnitPriceInstruction(microLamports).Build()
}

// Prepend returns a new slice with directive placed before instructions.
// The input slice is never modified.
func Prepend(directive solana.Instruction, instructions []solana.Instruction) []solana.Instruction {
	out := make([]solana.Instruction, 0, len(instructions)+1)
	out = append(out, directive)
	return append(out, instructions...)
}

// IsComputeBudget reports whether inst targets the compute budget program.
func IsComputeBudget(inst solana.Instruction) bool {
	return inst != nil && inst.ProgramID().Equals(ProgramID)
}

// ParseComputeUnitLimit extracts the unit value of a SetComputeUnitLimit directive.
func ParseComputeUnitLimit(inst solana.Instruction) (uint32, error) {
	dec, err := variantDecoder(inst, SetComputeUnitLimit, 4)
	if err != nil {
		return 0, err
	}
	return dec.ReadUint32(bin.LE)
}

// ParseComputeUnitPrice extracts the micro-lamport price of a SetComputeUnitPrice directive.
func ParseComputeUnitPrice(inst solana.Instruction) (uint64, error) {
	dec, err := variantDecoder(inst, SetComputeUnitPrice, 8)
	if err != nil {
		return 0, err
	}
	return dec.ReadUint64(bin.LE)
}

func variantDecoder(inst solana.Instruction, variant uint8, size int) (*bin.Decoder, error) {
	if !IsComputeBudget(inst) {
		return nil, ErrNotComputeBudget
	}
	data, err := inst.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read instruction data: %w", err)
	}
	if len(data) != 1+size {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidInstruction, len(data))
	}
	if data[0] != variant {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedVariant, cb.InstructionIDToName(data[0]))
	}
	return bin.NewBinDecoder(data[1:]), nil
}
