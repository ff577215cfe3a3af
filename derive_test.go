package tzbaker

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SLIP-10 test vector 1 seed.
const testSeedHex = "000102030405060708090a0b0c0d0e0f"

func testDeriver(t *testing.T) *SeedDeriver {
	t.Helper()

	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)

	deriver, err := NewSeedDeriver(seed)
	require.NoError(t, err)
	t.Cleanup(deriver.Wipe)

	return deriver
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestSeedDeriver_SLIP10Vectors(t *testing.T) {
	deriver := testDeriver(t)

	tests := []struct {
		name       string
		curve      Curve
		path       Path
		private    string
		compressed string
	}{
		{
			name:       "ed25519 master",
			curve:      CurveEd25519,
			path:       Path{},
			private:    "2b4be7f19ee27bbf30c667b642d5f4aa69fd169872f8fc3059c08ebae2eb19e7",
			compressed: "a4b2856bfec510abab89753fac1ac0e1112364e7d250545963f135f2a33188ed",
		},
		{
			name:       "ed25519 m/0H",
			curve:      CurveEd25519,
			path:       Path{Hardened},
			private:    "68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3",
			compressed: "8c8a13df77a28f3445213a0f432fde644acaa215fc72dcdf300d5efaa85d350c",
		},
		{
			name:       "secp256k1 m/0H",
			curve:      CurveSecp256k1,
			path:       Path{Hardened},
			private:    "edb2e14f9ee77d26dd93b4ecede8d16ed408ce149b6cd80b0715a2d911a0afea",
			compressed: "035a784662a4a20a65bf6aab9ae98a6c068a81c52e4b032c0fb5400c706cfccc56",
		},
		{
			name:       "nist256p1 master",
			curve:      CurveSecp256r1,
			path:       Path{},
			private:    "612091aaa12e22dd2abef664f8a01a82cae99ad7441b7ef8110424915c268bc2",
			compressed: "0266874dc6ade47b3ecd096745ca09bcd29638dd52c2c12117b11ed3e458cfa9e8",
		},
		{
			name:       "nist256p1 m/0H",
			curve:      CurveSecp256r1,
			path:       Path{Hardened},
			private:    "6939694369114c67917a182c59ddb8cafc3004e63ca5d3b84403ba8613debc0c",
			compressed: "0384610f5ecffe8fda089363a41f56a5c7ffc1d81b59a612d0d649b2d22355590c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kp, err := deriver.DeriveKeyPair(tt.curve, tt.path)
			require.NoError(t, err)
			defer kp.Wipe()

			assert.Equal(t, tt.private, hex.EncodeToString(kp.private[:32]))

			compressed, err := CompressPublicKey(tt.curve, kp.PublicKey)
			require.NoError(t, err)
			assert.Equal(t, tt.compressed, hex.EncodeToString(compressed))
		})
	}
}

func TestSeedDeriver_Ed25519ForcesHardened(t *testing.T) {
	deriver := testDeriver(t)

	soft, err := DerivePublicKey(deriver, PathWithCurve{Curve: CurveEd25519, Path: Path{44, 1729}})
	require.NoError(t, err)
	hard, err := DerivePublicKey(deriver, PathWithCurve{Curve: CurveEd25519, Path: Path{Hardened | 44, Hardened | 1729}})
	require.NoError(t, err)

	assert.Equal(t, hard, soft)
}

func TestNewSeedDeriver_SeedLength(t *testing.T) {
	_, err := NewSeedDeriver(make([]byte, 15))
	assert.Error(t, err)
	_, err = NewSeedDeriver(make([]byte, 65))
	assert.Error(t, err)
}

func TestSign_AllCurves(t *testing.T) {
	deriver := testDeriver(t)
	message := []byte("\x11consensus bytes")

	for _, curve := range []Curve{CurveEd25519, CurveSecp256k1, CurveSecp256r1, CurveBip32Ed25519} {
		t.Run(curve.String(), func(t *testing.T) {
			key := PathWithCurve{Curve: curve, Path: Path{Hardened | 44, Hardened | 1729, Hardened, Hardened}}

			var public, signature []byte
			err := WithKeyPair(deriver, key, func(kp *KeyPair) error {
				public = append([]byte(nil), kp.PublicKey...)

				var err error
				signature, err = Sign(kp, message)
				return err
			})
			require.NoError(t, err)

			switch curve.SignatureType() {
			case SignatureEd25519:
				assert.Len(t, public, 33)
				assert.Len(t, signature, 64)
			default:
				assert.Len(t, public, 65)
				assert.Equal(t, byte(0x30), signature[0], "DER sequence")
			}

			assert.True(t, Verify(curve, public, message, signature))
			assert.False(t, Verify(curve, public, []byte("other"), signature))
		})
	}
}

func TestP256_PointChecks(t *testing.T) {
	deriver := testDeriver(t)
	key := PathWithCurve{Curve: CurveSecp256r1, Path: Path{Hardened | 44, Hardened | 1729, Hardened}}

	public, err := DerivePublicKey(deriver, key)
	require.NoError(t, err)

	compressed, err := CompressPublicKey(CurveSecp256r1, public)
	require.NoError(t, err)
	assert.Len(t, compressed, 33)
	assert.Equal(t, public[1:33], compressed[1:])

	// a point off the curve never verifies
	offCurve := append([]byte(nil), public...)
	offCurve[64] ^= 0x01
	assert.False(t, Verify(CurveSecp256r1, offCurve, []byte("m"), []byte{0x30, 0x00}))

	_, err = CompressPublicKey(CurveSecp256r1, compressed)
	assert.ErrorIs(t, err, ErrParse)

	assert.False(t, p256Field{}.valid(make([]byte, 32)))
	assert.True(t, p256Field{}.valid(mustHex(t, "0000000000000000000000000000000000000000000000000000000000000001")))
}

func TestWipeInt(t *testing.T) {
	x := new(big.Int).SetBytes(mustHex(t, "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"))
	words := x.Bits()

	wipeInt(x)

	assert.Zero(t, x.Sign())
	for _, w := range words {
		assert.Zero(t, w)
	}
}

func TestBip32Ed25519_Deterministic(t *testing.T) {
	deriver := testDeriver(t)

	hardened := PathWithCurve{Curve: CurveBip32Ed25519, Path: Path{Hardened | 44, Hardened | 1729}}
	normal := PathWithCurve{Curve: CurveBip32Ed25519, Path: Path{Hardened | 44, 1729}}

	a, err := DerivePublicKey(deriver, hardened)
	require.NoError(t, err)
	b, err := DerivePublicKey(deriver, hardened)
	require.NoError(t, err)
	c, err := DerivePublicKey(deriver, normal)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, byte(0x02), a[0])
}

func TestWithKeyPair_WipesOnError(t *testing.T) {
	deriver := testDeriver(t)
	failure := errors.New("boom")

	var held *KeyPair
	err := WithKeyPair(deriver, PathWithCurve{Curve: CurveSecp256k1, Path: Path{Hardened}}, func(kp *KeyPair) error {
		held = kp
		return failure
	})

	assert.ErrorIs(t, err, failure)
	require.NotNil(t, held)
	assert.Nil(t, held.private)
}

type failingDeriver struct{}

func (failingDeriver) DeriveKeyPair(Curve, Path) (*KeyPair, error) {
	return nil, errors.New("secure element unavailable")
}

func TestWithKeyPair_DerivationFailure(t *testing.T) {
	_, err := DerivePublicKey(failingDeriver{}, PathWithCurve{Curve: CurveEd25519, Path: Path{Hardened}})
	assert.ErrorIs(t, err, ErrDerivationFailure)
	assert.Equal(t, SwInternal, StatusFor(err))
}

func TestPublicKeyHash_Addresses(t *testing.T) {
	deriver := testDeriver(t)

	prefixes := map[Curve]string{
		CurveEd25519:      "tz1",
		CurveBip32Ed25519: "tz1",
		CurveSecp256k1:    "tz2",
		CurveSecp256r1:    "tz3",
	}

	for curve, prefix := range prefixes {
		key := PathWithCurve{Curve: curve, Path: Path{Hardened | 44, Hardened | 1729}}

		public, err := DerivePublicKey(deriver, key)
		require.NoError(t, err)

		hash, compressed, err := PublicKeyHash(curve, public)
		require.NoError(t, err)
		assert.NotEmpty(t, compressed)

		address, err := Address(curve, hash)
		require.NoError(t, err)
		assert.Len(t, address, 36)
		assert.Equal(t, prefix, address[:3], curve.String())
	}
}
