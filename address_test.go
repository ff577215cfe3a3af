package tzbaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainnet ChainID = 0x7a06a770

func TestChainID_String(t *testing.T) {
	assert.Equal(t, "NetXdQprcVkpaWU", mainnet.String())
	assert.Equal(t, "any", ChainID(0).String())

	id, err := ParseChainID("NetXdQprcVkpaWU")
	require.NoError(t, err)
	assert.Equal(t, mainnet, id)

	id, err = ParseChainID("any")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestParseChainID_BadChecksum(t *testing.T) {
	_, err := ParseChainID("NetXdQprcVkpaWV")
	assert.Error(t, err)
}

func TestAddress_UnsetCurve(t *testing.T) {
	_, err := Address(CurveUnset, [KeyHashSize]byte{})
	assert.ErrorIs(t, err, ErrUnknownCurve)
}
