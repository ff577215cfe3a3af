package tzbaker

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"

	"filippo.io/edwards25519"
)

// BIP32-Ed25519 extended keys: kL is a clamped scalar, kR the nonce prefix,
// and derivation supports non-hardened children.

func deriveBip32Ed25519(seed []byte, path Path) (*KeyPair, error) {
	key := []byte(ed25519SeedKey)

	i := hmacSHA512(key, seed)
	for i[31]&0x20 != 0 {
		next := hmacSHA512(key, i)
		secureZero(i)
		i = next
	}
	i[0] &= 0xF8
	i[31] &= 0x7F
	i[31] |= 0x40

	chainMac := hmac.New(sha256.New, key)
	chainMac.Write([]byte{0x01})
	chainMac.Write(seed)
	chain := chainMac.Sum(nil)

	extended := i
	defer func() { secureZero(chain) }()

	public, err := extendedPublicKey(extended[:32])
	if err != nil {
		secureZero(extended)
		return nil, err
	}

	for _, c := range path {
		var zData, cData []byte

		index := binary.LittleEndian.AppendUint32(nil, c)
		if c&Hardened != 0 {
			zData = concat([]byte{0x00}, extended, index)
			cData = concat([]byte{0x01}, extended, index)
		} else {
			zData = concat([]byte{0x02}, public, index)
			cData = concat([]byte{0x03}, public, index)
		}

		z := hmacSHA512(chain, zData)
		cc := hmacSHA512(chain, cData)
		secureZero(zData)
		secureZero(cData)

		child := make([]byte, 64)
		addScaledLE(child[:32], extended[:32], z[:28])
		addLE(child[32:], extended[32:], z[32:])

		secureZero(extended)
		secureZero(z)
		extended = child

		secureZero(chain)
		chain = append([]byte(nil), cc[32:]...)
		secureZero(cc)

		public, err = extendedPublicKey(extended[:32])
		if err != nil {
			secureZero(extended)
			return nil, err
		}
	}

	return &KeyPair{
		Curve:     CurveBip32Ed25519,
		PublicKey: append([]byte{0x02}, public...),
		private:   extended,
	}, nil
}

func extendedScalar(kl []byte) (*edwards25519.Scalar, error) {
	wide := make([]byte, 64)
	copy(wide, kl)
	defer secureZero(wide)
	return edwards25519.NewScalar().SetUniformBytes(wide)
}

func extendedPublicKey(kl []byte) ([]byte, error) {
	s, err := extendedScalar(kl)
	if err != nil {
		return nil, err
	}
	return new(edwards25519.Point).ScalarBaseMult(s).Bytes(), nil
}

// signExtended produces an Ed25519 signature from an extended key, with
// kR taking the place of the hashed seed prefix.
func signExtended(extended, public, message []byte) ([]byte, error) {
	if len(extended) != 64 || len(public) != 32 {
		return nil, errors.New("bad extended key")
	}

	a, err := extendedScalar(extended[:32])
	if err != nil {
		return nil, err
	}

	h := sha512.New()
	h.Write(extended[32:])
	h.Write(message)
	r, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, err
	}

	R := new(edwards25519.Point).ScalarBaseMult(r).Bytes()

	h.Reset()
	h.Write(R)
	h.Write(public)
	h.Write(message)
	k, err := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	if err != nil {
		return nil, err
	}

	S := edwards25519.NewScalar().MultiplyAdd(k, a, r)

	return append(R, S.Bytes()...), nil
}

// addScaledLE sets out = kl + 8*zl as little-endian integers, mod 2^256.
func addScaledLE(out, kl, zl []byte) {
	var scaled [32]byte
	var prev byte
	for i := range zl {
		scaled[i] = zl[i]<<3 | prev>>5
		prev = zl[i]
	}
	scaled[len(zl)] = prev >> 5
	addLE(out, kl, scaled[:])
}

// addLE sets out = a + b as little-endian integers, mod 2^(8*len(out)).
func addLE(out, a, b []byte) {
	carry := 0
	for i := range out {
		sum := int(a[i]) + int(b[i]) + carry
		out[i] = byte(sum)
		carry = sum >> 8
	}
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
