package tzbaker

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockHeader builds a signed block header with a tenderbake fitness whose
// last element is the round.
func blockHeader(chain ChainID, level, round uint32) []byte {
	b := []byte{MagicBlock}
	b = binary.BigEndian.AppendUint32(b, uint32(chain))
	b = binary.BigEndian.AppendUint32(b, level)
	b = append(b, 0x13)                // proto
	b = append(b, make([]byte, 32)...) // predecessor
	b = append(b, make([]byte, 8)...)  // timestamp
	b = append(b, 4)                   // validation passes
	b = append(b, make([]byte, 32)...) // operations hash

	var fitness []byte
	fitness = binary.BigEndian.AppendUint32(fitness, 1)
	fitness = append(fitness, 0x02)
	fitness = binary.BigEndian.AppendUint32(fitness, 4)
	fitness = binary.BigEndian.AppendUint32(fitness, level)
	fitness = binary.BigEndian.AppendUint32(fitness, 0)
	fitness = binary.BigEndian.AppendUint32(fitness, 4)
	fitness = binary.BigEndian.AppendUint32(fitness, 0)
	fitness = binary.BigEndian.AppendUint32(fitness, 4)
	fitness = binary.BigEndian.AppendUint32(fitness, round)

	b = binary.BigEndian.AppendUint32(b, uint32(len(fitness)))
	b = append(b, fitness...)

	// protocol data
	return append(b, make([]byte, 32+4+8+1)...)
}

func consensusOp(magic, tag byte, chain ChainID, level, round uint32) []byte {
	b := []byte{magic}
	b = binary.BigEndian.AppendUint32(b, uint32(chain))
	b = append(b, make([]byte, 32)...) // branch
	b = append(b, tag)
	b = append(b, 0, 3) // slot
	b = binary.BigEndian.AppendUint32(b, level)
	b = binary.BigEndian.AppendUint32(b, round)
	return append(b, make([]byte, 32)...) // payload hash
}

func attestationOp(chain ChainID, level, round uint32) []byte {
	return consensusOp(MagicAttestation, tagAttestation, chain, level, round)
}

func preattestationOp(chain ChainID, level, round uint32) []byte {
	return consensusOp(MagicPreattestation, tagPreattestation, chain, level, round)
}

func TestParseConsensusOperation(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
		want ConsensusOperation
	}{
		{
			name: "block",
			msg:  blockHeader(mainnet, 5_000_000, 2),
			want: ConsensusOperation{Kind: OpBlock, ChainID: mainnet, Level: 5_000_000, Round: 2},
		},
		{
			name: "preattestation",
			msg:  preattestationOp(mainnet, 42, 1),
			want: ConsensusOperation{Kind: OpPreattestation, ChainID: mainnet, Level: 42, Round: 1},
		},
		{
			name: "attestation",
			msg:  attestationOp(7, 42, 0),
			want: ConsensusOperation{Kind: OpAttestation, ChainID: 7, Level: 42},
		},
		{
			name: "attestation with dal",
			msg:  consensusOp(MagicAttestation, tagAttestationWithDAL, mainnet, 9, 9),
			want: ConsensusOperation{Kind: OpAttestation, ChainID: mainnet, Level: 9, Round: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := ParseConsensusOperation(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, op)
		})
	}
}

func TestParseConsensusOperation_Rejects(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
	}{
		{"empty", nil},
		{"transaction", append([]byte{0x03}, make([]byte, 64)...)},
		{"truncated block", blockHeader(mainnet, 1, 0)[:40]},
		{"attestation tag under preattestation magic", consensusOp(MagicPreattestation, tagAttestation, mainnet, 1, 0)},
		{"invalid level", attestationOp(mainnet, 0x80000000, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConsensusOperation(tt.msg)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}
