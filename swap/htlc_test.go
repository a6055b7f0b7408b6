package swap

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
)

var (
	testPreimage = lntypes.Preimage{1, 2, 3, 4}

	testTimeout = uint32(730000)
)

func testKeys(t *testing.T) (*btcec.PrivateKey, *btcec.PrivateKey) {
	t.Helper()

	claimKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	refundKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return claimKey, refundKey
}

// TestSubmarineScript asserts the structure of the legacy submarine redeem
// script.
func TestSubmarineScript(t *testing.T) {
	claimKey, refundKey := testKeys(t)

	script, err := SubmarineScript(
		testPreimage.Hash(), claimKey.PubKey(), refundKey.PubKey(),
		testTimeout,
	)
	require.NoError(t, err)

	asm, err := txscript.DisasmString(script)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(asm, "OP_HASH160 "))
	require.Contains(t, asm, "OP_CHECKLOCKTIMEVERIFY")
	require.Contains(
		t, asm,
		hex.EncodeToString(claimKey.PubKey().SerializeCompressed()),
	)
	require.Contains(
		t, asm,
		hex.EncodeToString(refundKey.PubKey().SerializeCompressed()),
	)
	require.True(t, strings.HasSuffix(asm, "OP_CHECKSIG"))
}

// TestReverseScript asserts the structure of the legacy reverse swap redeem
// script, in particular the preimage size guard.
func TestReverseScript(t *testing.T) {
	claimKey, refundKey := testKeys(t)

	script, err := ReverseScript(
		testPreimage.Hash(), claimKey.PubKey(), refundKey.PubKey(),
		testTimeout,
	)
	require.NoError(t, err)

	asm, err := txscript.DisasmString(script)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(asm, "OP_SIZE 20 OP_EQUAL OP_IF"))
	require.Contains(t, asm, "OP_CHECKLOCKTIMEVERIFY")
	require.True(t, strings.HasSuffix(asm, "OP_CHECKSIG"))
}

// TestSubmarineHtlcLegacy checks the derived locking conditions for both
// segwit v0 output encodings.
func TestSubmarineHtlcLegacy(t *testing.T) {
	claimKey, refundKey := testKeys(t)

	// P2WSH: version 0 witness program committing to the redeem script.
	htlc, err := NewSubmarineHtlc(
		VersionLegacy, testPreimage.Hash(), claimKey.PubKey(),
		refundKey.PubKey(), testTimeout, OutputP2WSH,
	)
	require.NoError(t, err)

	scriptHash := sha256.Sum256(htlc.RedeemScript)
	require.Equal(t, byte(txscript.OP_0), htlc.PkScript[0])
	require.Equal(t, scriptHash[:], htlc.PkScript[2:])
	require.Nil(t, htlc.SigScript)
	require.Nil(t, htlc.Tree)

	// NP2WSH: p2sh wrapper plus a sigScript pushing the witness program.
	nested, err := NewSubmarineHtlc(
		VersionLegacy, testPreimage.Hash(), claimKey.PubKey(),
		refundKey.PubKey(), testTimeout, OutputNP2WSH,
	)
	require.NoError(t, err)

	require.Equal(t, byte(txscript.OP_HASH160), nested.PkScript[0])
	require.NotNil(t, nested.SigScript)
	require.Equal(t, htlc.PkScript, nested.SigScript[1:])
}

// TestSubmarineHtlcTaproot checks that the Taproot variant produces a p2tr
// output script and carries the tree.
func TestSubmarineHtlcTaproot(t *testing.T) {
	claimKey, refundKey := testKeys(t)

	htlc, err := NewSubmarineHtlc(
		VersionTaproot, testPreimage.Hash(), claimKey.PubKey(),
		refundKey.PubKey(), testTimeout, OutputP2TR,
	)
	require.NoError(t, err)

	require.Len(t, htlc.PkScript, 34)
	require.Equal(t, byte(txscript.OP_1), htlc.PkScript[0])
	require.NotNil(t, htlc.Tree)
	require.NotNil(t, htlc.OutputKey)
	require.Nil(t, htlc.RedeemScript)

	// Pairing a Taproot script with a v0 output encoding is rejected.
	_, err = NewSubmarineHtlc(
		VersionTaproot, testPreimage.Hash(), claimKey.PubKey(),
		refundKey.PubKey(), testTimeout, OutputP2WSH,
	)
	require.ErrorIs(t, err, ErrTaprootOutputType)

	// And vice versa.
	_, err = NewSubmarineHtlc(
		VersionLegacy, testPreimage.Hash(), claimKey.PubKey(),
		refundKey.PubKey(), testTimeout, OutputP2TR,
	)
	require.ErrorIs(t, err, ErrTaprootOutputType)
}

// TestReverseHtlcTaproot checks reverse tree key roles: the aggregation uses
// our refund key first, so swapping roles changes the output key.
func TestReverseHtlcTaproot(t *testing.T) {
	claimKey, refundKey := testKeys(t)

	htlc, err := NewReverseHtlc(
		VersionTaproot, testPreimage.Hash(), claimKey.PubKey(),
		refundKey.PubKey(), testTimeout, OutputP2TR,
	)
	require.NoError(t, err)

	swapped, err := NewReverseHtlc(
		VersionTaproot, testPreimage.Hash(), refundKey.PubKey(),
		claimKey.PubKey(), testTimeout, OutputP2TR,
	)
	require.NoError(t, err)

	require.NotEqual(t, htlc.PkScript, swapped.PkScript)
}
