package tzbaker

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"runtime"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/blake2b"
)

// KeyHashSize is the size of a public key hash (tz1/tz2/tz3 payload).
const KeyHashSize = 20

// KeyDeriver is the crypto capability backing the device: it turns a curve
// and a path into a key pair using a secret it never exposes.
type KeyDeriver interface {
	DeriveKeyPair(curve Curve, path Path) (*KeyPair, error)
}

// KeyPair holds derived key material. It must not outlive the operation that
// derived it; use WithKeyPair so it is wiped on every exit path.
type KeyPair struct {
	Curve Curve

	// PublicKey is 0x02 || A for the Edwards curves and the 65 byte
	// uncompressed point for the ECDSA curves.
	PublicKey []byte

	// private is the ed25519 private key, the 32 byte ECDSA scalar, or the
	// 64 byte kL || kR extended key for BIP32-Ed25519.
	private []byte
}

// Wipe zeroes the private part of the key pair.
func (kp *KeyPair) Wipe() {
	if kp == nil {
		return
	}
	secureZero(kp.private)
	kp.private = nil
}

// WithKeyPair derives the key pair of key, hands it to fn and wipes it
// before returning, whatever fn does.
func WithKeyPair(d KeyDeriver, key PathWithCurve, fn func(kp *KeyPair) error) error {
	if key.Curve.SignatureType() == SignatureUnset {
		return ErrUnknownCurve
	}

	kp, err := d.DeriveKeyPair(key.Curve, key.Path)
	if err != nil {
		if errors.Is(err, ErrUnknownCurve) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDerivationFailure, err)
	}
	defer kp.Wipe()

	return fn(kp)
}

// DerivePublicKey returns the public key of key. The private half never
// leaves this call.
func DerivePublicKey(d KeyDeriver, key PathWithCurve) ([]byte, error) {
	var public []byte
	err := WithKeyPair(d, key, func(kp *KeyPair) error {
		public = append([]byte(nil), kp.PublicKey...)
		return nil
	})
	return public, err
}

// CompressPublicKey returns the form of a public key that is hashed into an
// address: A for the Edwards curves, the 33 byte SEC1 compressed point otherwise.
func CompressPublicKey(curve Curve, public []byte) ([]byte, error) {
	switch curve {
	case CurveEd25519, CurveBip32Ed25519:
		if len(public) != 33 || public[0] != 0x02 {
			return nil, fmt.Errorf("%w: bad edwards public key", ErrParse)
		}
		return append([]byte(nil), public[1:]...), nil

	case CurveSecp256k1:
		pub, err := btcec.ParsePubKey(public)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		return pub.SerializeCompressed(), nil

	case CurveSecp256r1:
		out := compressP256(public)
		if out == nil {
			return nil, fmt.Errorf("%w: bad p256 public key", ErrParse)
		}
		return out, nil

	default:
		return nil, ErrUnknownCurve
	}
}

// PublicKeyHash returns blake2b-160 of the compressed public key, and the
// compressed key itself.
func PublicKeyHash(curve Curve, public []byte) ([KeyHashSize]byte, []byte, error) {
	var hash [KeyHashSize]byte

	compressed, err := CompressPublicKey(curve, public)
	if err != nil {
		return hash, nil, err
	}

	h, err := blake2b.New(KeyHashSize, nil)
	if err != nil {
		return hash, nil, err
	}
	h.Write(compressed)
	copy(hash[:], h.Sum(nil))

	return hash, compressed, nil
}

// Sign signs blake2b-256(message) with kp. Ed25519 signatures are 64 bytes,
// ECDSA signatures are DER encoded and their length varies.
func Sign(kp *KeyPair, message []byte) ([]byte, error) {
	if kp == nil || len(kp.private) == 0 {
		return nil, fmt.Errorf("%w: no private key", ErrSigningFailure)
	}

	digest := blake2b.Sum256(message)

	switch kp.Curve {
	case CurveEd25519:
		if len(kp.private) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: bad ed25519 key", ErrSigningFailure)
		}
		return ed25519.Sign(ed25519.PrivateKey(kp.private), digest[:]), nil

	case CurveBip32Ed25519:
		sig, err := signExtended(kp.private, kp.PublicKey[1:], digest[:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
		}
		return sig, nil

	case CurveSecp256k1:
		priv, _ := btcec.PrivKeyFromBytes(kp.private)
		defer priv.Zero()
		return btcecdsa.Sign(priv, digest[:]).Serialize(), nil

	case CurveSecp256r1:
		priv, err := p256PrivateKey(kp.private)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
		}
		sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
		wipeInt(priv.D)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
		}
		return sig, nil

	default:
		slog.Debug("Sign with unset curve", "Curve", kp.Curve)
		return nil, ErrUnknownCurve
	}
}

// Verify checks a signature produced by Sign.
func Verify(curve Curve, public, message, sig []byte) bool {
	digest := blake2b.Sum256(message)

	switch curve {
	case CurveEd25519, CurveBip32Ed25519:
		if len(public) != 33 {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(public[1:]), digest[:], sig)

	case CurveSecp256k1:
		pub, err := btcec.ParsePubKey(public)
		if err != nil {
			return false
		}
		s, err := btcecdsa.ParseDERSignature(sig)
		if err != nil {
			return false
		}
		return s.Verify(digest[:], pub)

	case CurveSecp256r1:
		pub, err := p256ECDSAPublicKey(public)
		if err != nil {
			return false
		}
		return ecdsa.VerifyASN1(pub, digest[:], sig)

	default:
		return false
	}
}

// p256ECDSAPublicKey checks that public is an uncompressed point on the
// curve and converts it for crypto/ecdsa.
func p256ECDSAPublicKey(public []byte) (*ecdsa.PublicKey, error) {
	if _, err := ecdh.P256().NewPublicKey(public); err != nil {
		return nil, err
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(public[1:33]),
		Y:     new(big.Int).SetBytes(public[33:65]),
	}, nil
}

func p256PrivateKey(scalar []byte) (*ecdsa.PrivateKey, error) {
	public, err := p256PublicKey(scalar)
	if err != nil {
		return nil, err
	}
	pub, err := p256ECDSAPublicKey(public)
	if err != nil {
		return nil, err
	}
	return &ecdsa.PrivateKey{PublicKey: *pub, D: new(big.Int).SetBytes(scalar)}, nil
}

// secureZero wipes sensitive data from memory.
func secureZero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// wipeInt zeroes the words backing x, then x itself.
func wipeInt(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	runtime.KeepAlive(words)
	x.SetInt64(0)
}
