package tzbaker

import (
	"fmt"
	"strconv"
)

// Buffer sizes of the two lines of the display.
const (
	TitleSize = 32
	ValueSize = 104
)

// Value is something a screen entry can display. The set is closed: every
// implementation lives in this file and is handled by renderValue.
type Value interface {
	isValue()
}

// StringValue displays a fixed text.
type StringValue string

// ChainValue displays a chain id.
type ChainValue ChainID

// AddressValue displays an already computed public key hash.
type AddressValue struct {
	Curve Curve
	Hash  [KeyHashSize]byte
}

// KeyValue displays the public key hash of a key, derived when shown.
type KeyValue PathWithCurve

// WatermarkValue displays a high watermark.
type WatermarkValue HighWatermark

// LevelValue displays a block level.
type LevelValue uint32

// liveValue displays whatever value it returns at render time.
type liveValue func() Value

func (StringValue) isValue()    {}
func (ChainValue) isValue()     {}
func (AddressValue) isValue()   {}
func (KeyValue) isValue()       {}
func (WatermarkValue) isValue() {}
func (LevelValue) isValue()     {}
func (liveValue) isValue()      {}

const noKeyText = "No Key Authorized"

// renderValue turns a value into display text. Keys are derived through d.
func renderValue(d KeyDeriver, v Value) (string, error) {
	switch v := v.(type) {
	case StringValue:
		return string(v), nil

	case ChainValue:
		return ChainID(v).String(), nil

	case AddressValue:
		return Address(v.Curve, v.Hash)

	case KeyValue:
		key := PathWithCurve(v)
		if !key.IsSet() {
			return noKeyText, nil
		}
		public, err := DerivePublicKey(d, key)
		if err != nil {
			return "", err
		}
		hash, _, err := PublicKeyHash(key.Curve, public)
		if err != nil {
			return "", err
		}
		return Address(key.Curve, hash)

	case WatermarkValue:
		if v.HighestRound == 0 {
			return strconv.FormatUint(uint64(v.HighestLevel), 10), nil
		}
		return fmt.Sprintf("%d (%d)", v.HighestLevel, v.HighestRound), nil

	case LevelValue:
		return strconv.FormatUint(uint64(v), 10), nil

	case liveValue:
		return renderValue(d, v())

	default:
		return "", fmt.Errorf("unsupported screen value %T", v)
	}
}

// copyTruncated writes as much of s as fits into dst, zeroing the rest, and
// returns the number of bytes written.
func copyTruncated(dst []byte, s string) int {
	for i := range dst {
		dst[i] = 0
	}
	return copy(dst, s)
}
