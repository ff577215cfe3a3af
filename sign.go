package tzbaker

import (
	"fmt"
	"log/slog"

	"golang.org/x/crypto/blake2b"
)

// MaxMessageSize bounds the message accumulated by a SIGN exchange.
const MaxMessageSize = 1024

// signState is the scratch context of a SIGN exchange.
type signState struct {
	started  bool
	withHash bool
	key      PathWithCurve
	message  []byte
}

func (s *signState) clear() {
	*s = signState{}
}

// handleSign accumulates SIGN packets: the first carries the key path, the
// following ones the message. The final packet triggers the signature.
func (device *Device) handleSign(cmd Command) (Result, error) {
	result, err := device.accumulateSign(cmd)
	if err != nil {
		device.sign.clear()
	}
	return result, err
}

func (device *Device) accumulateSign(cmd Command) (Result, error) {

	withHash := cmd.Ins == InsSignWithHash
	last := cmd.P1&P1Last != 0

	switch cmd.P1 &^ P1Last {

	case P1First:
		device.sign.clear()

		path, err := ParseExactPath(cmd.Data)
		if err != nil {
			return Result{}, err
		}
		if last {
			return Result{}, fmt.Errorf("%w: no message to sign", ErrParse)
		}

		device.sign = signState{
			started:  true,
			withHash: withHash,
			key:      PathWithCurve{Curve: cmd.Curve(), Path: path},
		}

		slog.Debug("Sign started", "Key", device.sign.key.String(), "WithHash", withHash)

		return Result{}, nil

	case P1Next:
		if !device.sign.started || device.sign.withHash != withHash {
			return Result{}, fmt.Errorf("%w: message packet without a key packet", ErrWrongParam)
		}

		if len(device.sign.message)+len(cmd.Data) > MaxMessageSize {
			return Result{}, fmt.Errorf("%w: message exceeds %d bytes", ErrWrongLength, MaxMessageSize)
		}
		device.sign.message = append(device.sign.message, cmd.Data...)

		if !last {
			return Result{}, nil
		}

		state := device.sign
		device.sign.clear()

		return device.signConsensus(state)

	default:
		return Result{}, ErrWrongParam

	}
}

// signConsensus signs a consensus operation with the baking key once the
// high watermark has been advanced past it.
func (device *Device) signConsensus(state signState) (Result, error) {

	op, err := ParseConsensusOperation(state.message)
	if err != nil {
		return Result{}, err
	}

	baking := device.guard.BakingKey()
	if !baking.IsSet() || !baking.Equal(state.key) {
		return Result{}, fmt.Errorf("%w: %s is not the baking key", ErrSecurityViolation, state.key)
	}

	chain := device.guard.ContextFor(op.ChainID)

	slog.Debug("Sign consensus operation",
		"Kind", op.Kind.String(),
		"Chain", op.ChainID.String(),
		"Context", chain.String(),
		"Level", op.Level,
		"Round", op.Round)

	// persisted before any signature exists
	if err := device.guard.ValidateAndAdvance(chain, op.Level, op.Round, op.Kind.IsAttestation()); err != nil {
		return Result{}, err
	}

	var signature []byte
	err = WithKeyPair(device.deriver, state.key, func(kp *KeyPair) error {
		var err error
		signature, err = Sign(kp, state.message)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	if !state.withHash {
		return Result{Data: signature}, nil
	}

	hash := blake2b.Sum256(state.message)
	return Result{Data: append(hash[:], signature...)}, nil
}
