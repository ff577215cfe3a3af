package tzbaker

import "fmt"

// Curve selects the derivation scheme and signature algorithm of a key.
type Curve uint8

const (
	CurveUnset Curve = iota
	CurveEd25519
	CurveSecp256k1
	CurveSecp256r1
	CurveBip32Ed25519
)

// SignatureType is the signature scheme a curve signs with.
type SignatureType uint8

const (
	SignatureUnset SignatureType = iota
	SignatureEd25519
	SignatureSecp256k1
	SignatureP256
)

// ParseCurve maps a wire curve code to a Curve. Unknown codes map to
// CurveUnset; the failure surfaces when the curve is used.
func ParseCurve(code byte) Curve {
	switch code {
	case 0:
		return CurveEd25519
	case 1:
		return CurveSecp256k1
	case 2:
		return CurveSecp256r1
	case 3:
		return CurveBip32Ed25519
	default:
		return CurveUnset
	}
}

// Code returns the wire code of the curve.
func (c Curve) Code() (byte, error) {
	switch c {
	case CurveEd25519:
		return 0, nil
	case CurveSecp256k1:
		return 1, nil
	case CurveSecp256r1:
		return 2, nil
	case CurveBip32Ed25519:
		return 3, nil
	default:
		return 0, ErrUnknownCurve
	}
}

func (c Curve) SignatureType() SignatureType {
	switch c {
	case CurveEd25519, CurveBip32Ed25519:
		return SignatureEd25519
	case CurveSecp256k1:
		return SignatureSecp256k1
	case CurveSecp256r1:
		return SignatureP256
	default:
		return SignatureUnset
	}
}

func (c Curve) String() string {
	switch c {
	case CurveEd25519:
		return "ed25519"
	case CurveSecp256k1:
		return "secp256k1"
	case CurveSecp256r1:
		return "secp256r1"
	case CurveBip32Ed25519:
		return "bip32-ed25519"
	default:
		return fmt.Sprintf("unset(%d)", uint8(c))
	}
}

// ParseCurveName is the inverse of String for the defined curves.
func ParseCurveName(name string) (Curve, error) {
	for _, c := range []Curve{CurveEd25519, CurveSecp256k1, CurveSecp256r1, CurveBip32Ed25519} {
		if c.String() == name {
			return c, nil
		}
	}
	return CurveUnset, fmt.Errorf("%w: %q", ErrUnknownCurve, name)
}
