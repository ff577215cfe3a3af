package tzbaker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// base58check prefixes
var (
	prefixTz1     = []byte{6, 161, 159}
	prefixTz2     = []byte{6, 161, 161}
	prefixTz3     = []byte{6, 161, 164}
	prefixChainID = []byte{87, 82, 0}
)

// ChainID identifies a Tezos chain. The zero value stands for "any chain".
type ChainID uint32

// Address converts a public key hash into its tz1/tz2/tz3 form.
func Address(curve Curve, hash [KeyHashSize]byte) (string, error) {
	var prefix []byte

	switch curve.SignatureType() {
	case SignatureEd25519:
		prefix = prefixTz1
	case SignatureSecp256k1:
		prefix = prefixTz2
	case SignatureP256:
		prefix = prefixTz3
	default:
		return "", ErrUnknownCurve
	}

	return base58CheckEncode(prefix, hash[:]), nil
}

// String renders the chain id as "NetXdQprcVkpaWU", or "any" for zero.
func (id ChainID) String() string {
	if id == 0 {
		return "any"
	}
	return base58CheckEncode(prefixChainID, binary.BigEndian.AppendUint32(nil, uint32(id)))
}

// ParseChainID decodes the base58check form produced by String.
func ParseChainID(s string) (ChainID, error) {
	if s == "any" || s == "" {
		return 0, nil
	}

	payload, err := base58CheckDecode(prefixChainID, s)
	if err != nil {
		return 0, err
	}
	if len(payload) != 4 {
		return 0, fmt.Errorf("chain id payload is %d bytes", len(payload))
	}

	return ChainID(binary.BigEndian.Uint32(payload)), nil
}

func base58CheckEncode(prefix, payload []byte) string {
	data := make([]byte, 0, len(prefix)+len(payload)+4)
	data = append(data, prefix...)
	data = append(data, payload...)
	data = append(data, checksum(data)...)
	return base58.Encode(data)
}

func base58CheckDecode(prefix []byte, s string) ([]byte, error) {
	data := base58.Decode(s)
	if len(data) < len(prefix)+4 {
		return nil, errors.New("base58check string too short")
	}

	body, sum := data[:len(data)-4], data[len(data)-4:]
	if !bytes.Equal(checksum(body), sum) {
		return nil, errors.New("base58check checksum mismatch")
	}
	if !bytes.HasPrefix(body, prefix) {
		return nil, errors.New("base58check prefix mismatch")
	}

	return body[len(prefix):], nil
}

// checksum is the first four bytes of double SHA-256.
func checksum(data []byte) []byte {
	return chainhash.DoubleHashB(data)[:4]
}
