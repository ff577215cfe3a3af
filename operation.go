package tzbaker

import (
	"encoding/binary"
	"fmt"
)

// Watermark bytes prefixing signed consensus operations.
const (
	MagicBlock          byte = 0x11
	MagicPreattestation byte = 0x12
	MagicAttestation    byte = 0x13
)

// Operation tags following the branch of a consensus operation.
const (
	tagPreattestation     byte = 20
	tagAttestation        byte = 21
	tagAttestationWithDAL byte = 23
)

// OperationKind is the kind of consensus operation being signed.
type OperationKind int

const (
	OpBlock OperationKind = iota
	OpPreattestation
	OpAttestation
)

func (k OperationKind) String() string {
	switch k {
	case OpBlock:
		return "block"
	case OpPreattestation:
		return "preattestation"
	case OpAttestation:
		return "attestation"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// IsAttestation reports whether the operation is tracked by the attestation
// flag of the watermark. Preattestations and attestations share it.
func (k OperationKind) IsAttestation() bool {
	return k == OpPreattestation || k == OpAttestation
}

// ConsensusOperation is what the watermark check needs to know about a
// signed message.
type ConsensusOperation struct {
	Kind    OperationKind
	ChainID ChainID
	Level   uint32
	Round   uint32
}

type opReader struct {
	buf []byte
	off int
}

func (r *opReader) take(n int) ([]byte, error) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, fmt.Errorf("%w: operation truncated at byte %d", ErrParse, r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *opReader) readByte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *opReader) readUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ParseConsensusOperation recognises a block header, a preattestation or an
// attestation and extracts its chain id, level and round. Anything else
// fails with ErrParse.
func ParseConsensusOperation(msg []byte) (ConsensusOperation, error) {
	r := &opReader{buf: msg}

	magic, err := r.readByte()
	if err != nil {
		return ConsensusOperation{}, err
	}

	chain, err := r.readUint32()
	if err != nil {
		return ConsensusOperation{}, err
	}

	var op ConsensusOperation
	switch magic {
	case MagicBlock:
		op, err = parseBlock(r)
	case MagicPreattestation, MagicAttestation:
		op, err = parseAttestation(r, magic)
	default:
		return ConsensusOperation{}, fmt.Errorf("%w: unsupported magic byte %#02x", ErrParse, magic)
	}
	if err != nil {
		return ConsensusOperation{}, err
	}

	if !IsValidLevel(op.Level) {
		return ConsensusOperation{}, fmt.Errorf("%w: invalid level %d", ErrParse, op.Level)
	}

	op.ChainID = ChainID(chain)
	return op, nil
}

// Shell header: level, proto, predecessor, timestamp, validation pass,
// operations hash, fitness. The round is the last fitness element.
func parseBlock(r *opReader) (ConsensusOperation, error) {
	level, err := r.readUint32()
	if err != nil {
		return ConsensusOperation{}, err
	}

	// proto, predecessor, timestamp, validation pass, operations hash
	if _, err := r.take(1 + 32 + 8 + 1 + 32); err != nil {
		return ConsensusOperation{}, err
	}

	size, err := r.readUint32()
	if err != nil {
		return ConsensusOperation{}, err
	}
	if size < 4 {
		return ConsensusOperation{}, fmt.Errorf("%w: fitness of %d bytes", ErrParse, size)
	}

	fitness, err := r.take(int(size))
	if err != nil {
		return ConsensusOperation{}, err
	}

	return ConsensusOperation{
		Kind:  OpBlock,
		Level: level,
		Round: binary.BigEndian.Uint32(fitness[len(fitness)-4:]),
	}, nil
}

// branch, tag, slot, level, round
func parseAttestation(r *opReader, magic byte) (ConsensusOperation, error) {
	if _, err := r.take(32); err != nil {
		return ConsensusOperation{}, err
	}

	tag, err := r.readByte()
	if err != nil {
		return ConsensusOperation{}, err
	}

	var kind OperationKind
	switch {
	case magic == MagicPreattestation && tag == tagPreattestation:
		kind = OpPreattestation
	case magic == MagicAttestation && (tag == tagAttestation || tag == tagAttestationWithDAL):
		kind = OpAttestation
	default:
		return ConsensusOperation{}, fmt.Errorf("%w: tag %d under magic %#02x", ErrParse, tag, magic)
	}

	if _, err := r.take(2); err != nil {
		return ConsensusOperation{}, err
	}

	level, err := r.readUint32()
	if err != nil {
		return ConsensusOperation{}, err
	}
	round, err := r.readUint32()
	if err != nil {
		return ConsensusOperation{}, err
	}

	return ConsensusOperation{Kind: kind, Level: level, Round: round}, nil
}
