package tzbaker

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	ed25519SeedKey   = "ed25519 seed"
	secp256k1SeedKey = "Bitcoin seed"
	nist256p1SeedKey = "Nist256p1 seed"
)

var errInvalidSeed = errors.New("seed must be between 16 and 64 bytes")

// SeedDeriver derives keys from a master seed following SLIP-10 for the
// Ed25519, secp256k1 and P-256 curves, and BIP32-Ed25519 for extended
// Edwards keys.
type SeedDeriver struct {
	seed []byte
}

func NewSeedDeriver(seed []byte) (*SeedDeriver, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, errInvalidSeed
	}
	return &SeedDeriver{seed: append([]byte(nil), seed...)}, nil
}

// Wipe zeroes the master seed. The deriver is unusable afterwards.
func (d *SeedDeriver) Wipe() {
	secureZero(d.seed)
	d.seed = nil
}

func (d *SeedDeriver) DeriveKeyPair(curve Curve, path Path) (*KeyPair, error) {
	if len(d.seed) == 0 {
		return nil, errInvalidSeed
	}
	if len(path) > MaxPathLength {
		return nil, fmt.Errorf("path has %d components", len(path))
	}

	switch curve {
	case CurveEd25519:
		return d.deriveEd25519(path)
	case CurveSecp256k1:
		return d.deriveWeierstrass(curve, secp256k1Field{}, path)
	case CurveSecp256r1:
		return d.deriveWeierstrass(curve, p256Field{}, path)
	case CurveBip32Ed25519:
		return deriveBip32Ed25519(d.seed, path)
	default:
		return nil, ErrUnknownCurve
	}
}

func (d *SeedDeriver) deriveEd25519(path Path) (*KeyPair, error) {
	i := hmacSHA512([]byte(ed25519SeedKey), d.seed)
	defer func() { secureZero(i) }()

	// Ed25519 only has hardened derivation: every component is hardened.
	for _, c := range path {
		data := make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, i[:32]...)
		data = binary.BigEndian.AppendUint32(data, c|Hardened)

		next := hmacSHA512(i[32:], data)
		secureZero(data)
		secureZero(i)
		i = next
	}

	private := ed25519.NewKeyFromSeed(i[:32])
	public := private.Public().(ed25519.PublicKey)

	return &KeyPair{
		Curve:     CurveEd25519,
		PublicKey: append([]byte{0x02}, public...),
		private:   private,
	}, nil
}

// scalarField is the curve specific arithmetic SLIP-10 needs.
type scalarField interface {
	seedKey() string
	// tweak returns (il + k) mod n. ok is false when il >= n or the result is zero.
	tweak(k, il []byte) (child []byte, ok bool)
	valid(k []byte) bool
	compressed(k []byte) []byte
	uncompressed(k []byte) []byte
}

func (d *SeedDeriver) deriveWeierstrass(curve Curve, field scalarField, path Path) (*KeyPair, error) {
	key := []byte(field.seedKey())

	i := hmacSHA512(key, d.seed)
	for !field.valid(i[:32]) {
		next := hmacSHA512(key, i)
		secureZero(i)
		i = next
	}

	k := append([]byte(nil), i[:32]...)
	chain := append([]byte(nil), i[32:]...)
	secureZero(i)
	defer func() { secureZero(chain) }()

	for _, c := range path {
		var data []byte
		if c&Hardened != 0 {
			data = append([]byte{0x00}, k...)
		} else {
			data = field.compressed(k)
		}
		data = binary.BigEndian.AppendUint32(data, c)

		for {
			i = hmacSHA512(chain, data)
			child, ok := field.tweak(k, i[:32])
			if ok {
				secureZero(k)
				secureZero(chain)
				k = child
				chain = append(chain[:0], i[32:]...)
				secureZero(i)
				break
			}

			// SLIP-10: retry with 0x01 || IR || index.
			secureZero(data)
			data = append([]byte{0x01}, i[32:]...)
			data = binary.BigEndian.AppendUint32(data, c)
			secureZero(i)
		}
		secureZero(data)
	}

	return &KeyPair{
		Curve:     curve,
		PublicKey: field.uncompressed(k),
		private:   k,
	}, nil
}

type secp256k1Field struct{}

func (secp256k1Field) seedKey() string { return secp256k1SeedKey }

func (secp256k1Field) tweak(k, il []byte) ([]byte, bool) {
	var a, b secp256k1.ModNScalar
	if overflow := a.SetByteSlice(il); overflow {
		return nil, false
	}
	b.SetByteSlice(k)
	a.Add(&b)
	b.Zero()
	if a.IsZero() {
		return nil, false
	}
	out := a.Bytes()
	a.Zero()
	return out[:], true
}

func (secp256k1Field) valid(k []byte) bool {
	var s secp256k1.ModNScalar
	overflow := s.SetByteSlice(k)
	defer s.Zero()
	return !overflow && !s.IsZero()
}

func (secp256k1Field) compressed(k []byte) []byte {
	priv := secp256k1.PrivKeyFromBytes(k)
	defer priv.Zero()
	return priv.PubKey().SerializeCompressed()
}

func (secp256k1Field) uncompressed(k []byte) []byte {
	priv := secp256k1.PrivKeyFromBytes(k)
	defer priv.Zero()
	return priv.PubKey().SerializeUncompressed()
}

type p256Field struct{}

func (p256Field) seedKey() string { return nist256p1SeedKey }

func (p256Field) tweak(k, il []byte) ([]byte, bool) {
	n := elliptic.P256().Params().N

	a := new(big.Int).SetBytes(il)
	defer wipeInt(a)
	if a.Cmp(n) >= 0 {
		return nil, false
	}

	b := new(big.Int).SetBytes(k)
	defer wipeInt(b)

	a.Add(a, b)
	a.Mod(a, n)
	if a.Sign() == 0 {
		return nil, false
	}
	return a.FillBytes(make([]byte, 32)), true
}

// valid relies on ecdh rejecting zero and scalars not below the order.
func (p256Field) valid(k []byte) bool {
	_, err := ecdh.P256().NewPrivateKey(k)
	return err == nil
}

func (p256Field) compressed(k []byte) []byte {
	return compressP256(p256Field{}.uncompressed(k))
}

func (p256Field) uncompressed(k []byte) []byte {
	public, err := p256PublicKey(k)
	if err != nil {
		return nil
	}
	return public
}

// p256PublicKey returns the 65 byte uncompressed point of scalar k.
func p256PublicKey(k []byte) ([]byte, error) {
	priv, err := ecdh.P256().NewPrivateKey(k)
	if err != nil {
		return nil, err
	}
	return priv.PublicKey().Bytes(), nil
}

// compressP256 turns an uncompressed point into its 33 byte SEC1 form.
func compressP256(public []byte) []byte {
	if len(public) != 65 || public[0] != 0x04 {
		return nil
	}
	out := make([]byte, 33)
	out[0] = 0x02 | public[64]&1
	copy(out[1:], public[1:33])
	return out
}

func hmacSHA512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
