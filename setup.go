package tzbaker

import (
	"encoding/binary"
	"fmt"
)

// setupHeaderSize is chain id, main level and test level.
const setupHeaderSize = 12

// handleSetup configures the baker in one prompt: main chain id, both
// watermark levels and the baking key. The payload is the chain id and the
// two levels, big endian, followed by the key path.
func (device *Device) handleSetup(cmd Command) (Result, error) {

	if cmd.P1 != 0 {
		return Result{}, ErrWrongParam
	}

	if len(cmd.Data) < setupHeaderSize {
		return Result{}, fmt.Errorf("%w: setup payload of %d bytes", ErrWrongLength, len(cmd.Data))
	}

	chain := ChainID(binary.BigEndian.Uint32(cmd.Data[0:]))
	mainLevel := binary.BigEndian.Uint32(cmd.Data[4:])
	testLevel := binary.BigEndian.Uint32(cmd.Data[8:])

	if !IsValidLevel(mainLevel) || !IsValidLevel(testLevel) {
		return Result{}, fmt.Errorf("%w: invalid level", ErrParse)
	}

	path, err := ParseExactPath(cmd.Data[setupHeaderSize:])
	if err != nil {
		return Result{}, err
	}
	key := PathWithCurve{Curve: cmd.Curve(), Path: path}

	public, err := DerivePublicKey(device.deriver, key)
	if err != nil {
		return Result{}, err
	}

	hash, _, err := PublicKeyHash(key.Curve, public)
	if err != nil {
		return Result{}, err
	}

	reply := providePublicKey(public)

	return device.prompt([]Entry{
		{"Setup", StringValue("Baking?")},
		{"Address", AddressValue{Curve: key.Curve, Hash: hash}},
		{"Chain", ChainValue(chain)},
		{"Main Chain HWM", LevelValue(mainLevel)},
		{"Test Chain HWM", LevelValue(testLevel)},
	}, func() ([]byte, error) {
		if err := device.guard.Setup(chain, mainLevel, testLevel, key); err != nil {
			return nil, err
		}
		return reply, nil
	})
}
