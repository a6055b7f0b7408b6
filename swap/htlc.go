package swap

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
)

var (
	// ErrInvalidScriptVersion is returned for unknown script versions.
	ErrInvalidScriptVersion = errors.New("invalid script version")

	// ErrTaprootOutputType is returned when a Taproot swap is paired with
	// a segwit v0 output type or vice versa.
	ErrTaprootOutputType = errors.New("output type does not match script " +
		"version")
)

// OutputType defines the output encoding of the lockup script that is put
// on chain.
type OutputType uint8

const (
	// OutputP2WSH is a pay-to-witness-script-hash output (segwit only).
	OutputP2WSH OutputType = iota

	// OutputNP2WSH is a nested pay-to-witness-script-hash output that can
	// be paid to by legacy wallets.
	OutputNP2WSH

	// OutputP2TR is a pay-to-taproot output.
	OutputP2TR
)

// String returns the string value of OutputType.
func (o OutputType) String() string {
	switch o {
	case OutputP2WSH:
		return "P2WSH"

	case OutputNP2WSH:
		return "NP2WSH"

	case OutputP2TR:
		return "P2TR"

	default:
		return "unknown"
	}
}

// Htlc contains the on-chain lockup conditions of one swap leg.
type Htlc struct {
	// Version is the script generation used.
	Version Version

	// PreimageHash is the hash the claim path is locked to.
	PreimageHash lntypes.Hash

	// TimeoutBlockHeight is the absolute block height after which the
	// refund path unlocks.
	TimeoutBlockHeight uint32

	// OutputType is the encoding of the lockup output.
	OutputType OutputType

	// PkScript is the lockup output script.
	PkScript []byte

	// SigScript is set for nested segwit outputs and contains the witness
	// program push required to spend them.
	SigScript []byte

	// RedeemScript is the legacy witness script. Nil for Taproot swaps.
	RedeemScript []byte

	// Tree is the Taproot script tree. Nil for legacy swaps.
	Tree *Tree

	// OutputKey is the tweaked Taproot output key. Nil for legacy swaps.
	OutputKey *btcec.PublicKey
}

// NewSubmarineHtlc assembles the lockup conditions of the on-chain leg of a
// submarine swap. The claim key is ours, the refund key belongs to the user.
func NewSubmarineHtlc(version Version, preimageHash lntypes.Hash, claimKey,
	refundKey *btcec.PublicKey, timeoutBlockHeight uint32,
	outputType OutputType) (*Htlc, error) {

	switch version {
	case VersionLegacy:
		script, err := SubmarineScript(
			preimageHash, claimKey, refundKey, timeoutBlockHeight,
		)
		if err != nil {
			return nil, err
		}

		return newLegacyHtlc(
			script, preimageHash, timeoutBlockHeight, outputType,
		)

	case VersionTaproot:
		tree, err := NewSubmarineTree(
			preimageHash, claimKey, refundKey, timeoutBlockHeight,
		)
		if err != nil {
			return nil, err
		}

		return newTaprootHtlc(
			tree, claimKey, refundKey, preimageHash,
			timeoutBlockHeight, outputType,
		)

	default:
		return nil, ErrInvalidScriptVersion
	}
}

// NewReverseHtlc assembles the lockup conditions of the on-chain leg of a
// reverse swap. The claim key belongs to the user, the refund key is ours.
func NewReverseHtlc(version Version, preimageHash lntypes.Hash, claimKey,
	refundKey *btcec.PublicKey, timeoutBlockHeight uint32,
	outputType OutputType) (*Htlc, error) {

	switch version {
	case VersionLegacy:
		script, err := ReverseScript(
			preimageHash, claimKey, refundKey, timeoutBlockHeight,
		)
		if err != nil {
			return nil, err
		}

		return newLegacyHtlc(
			script, preimageHash, timeoutBlockHeight, outputType,
		)

	case VersionTaproot:
		tree, err := NewReverseTree(
			preimageHash, claimKey, refundKey, timeoutBlockHeight,
		)
		if err != nil {
			return nil, err
		}

		// For reverse swaps our key is the refund key; the
		// counterparty aggregates in the same order on their side.
		return newTaprootHtlc(
			tree, refundKey, claimKey, preimageHash,
			timeoutBlockHeight, outputType,
		)

	default:
		return nil, ErrInvalidScriptVersion
	}
}

// newLegacyHtlc derives the output encoding of a legacy redeem script.
func newLegacyHtlc(redeemScript []byte, preimageHash lntypes.Hash,
	timeoutBlockHeight uint32, outputType OutputType) (*Htlc, error) {

	pkScript, sigScript, err := segwitV0LockingConditions(
		outputType, redeemScript,
	)
	if err != nil {
		return nil, err
	}

	return &Htlc{
		Version:            VersionLegacy,
		PreimageHash:       preimageHash,
		TimeoutBlockHeight: timeoutBlockHeight,
		OutputType:         outputType,
		PkScript:           pkScript,
		SigScript:          sigScript,
		RedeemScript:       redeemScript,
	}, nil
}

// newTaprootHtlc tweaks the aggregated swap key with the tree root and
// derives the p2tr output script.
func newTaprootHtlc(tree *Tree, ourKey, theirKey *btcec.PublicKey,
	preimageHash lntypes.Hash, timeoutBlockHeight uint32,
	outputType OutputType) (*Htlc, error) {

	if outputType != OutputP2TR {
		return nil, ErrTaprootOutputType
	}

	outputKey, err := tree.TaprootOutputKey(ourKey, theirKey)
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToTaprootScript(outputKey)
	if err != nil {
		return nil, err
	}

	return &Htlc{
		Version:            VersionTaproot,
		PreimageHash:       preimageHash,
		TimeoutBlockHeight: timeoutBlockHeight,
		OutputType:         outputType,
		PkScript:           pkScript,
		Tree:               tree,
		OutputKey:          outputKey,
	}, nil
}

// segwitV0LockingConditions provides the pkScript and sigScript (if required)
// for the segwit v0 script and output type provided.
func segwitV0LockingConditions(outputType OutputType,
	script []byte) ([]byte, []byte, error) {

	switch outputType {
	case OutputP2WSH:
		pkScript, err := input.WitnessScriptHash(script)
		if err != nil {
			return nil, nil, err
		}

		// Pay to witness script hash does not need a sigScript (it is
		// provided in the witness instead).
		return pkScript, nil, nil

	case OutputNP2WSH:
		pks, err := input.WitnessScriptHash(script)
		if err != nil {
			return nil, nil, err
		}

		// Generate the p2sh script wrapping the p2wsh program.
		p2wshPkScriptHash := sha256.Sum256(pks)
		hash160 := input.Ripemd160H(p2wshPkScriptHash[:])

		builder := txscript.NewScriptBuilder()
		builder.AddOp(txscript.OP_HASH160)
		builder.AddData(hash160)
		builder.AddOp(txscript.OP_EQUAL)

		pkScript, err := builder.Script()
		if err != nil {
			return nil, nil, err
		}

		// The sigScript contains only a single push of the p2wsh
		// witness program corresponding to the wrapped script.
		sigScript, err := txscript.NewScriptBuilder().
			AddData(pks).
			Script()
		if err != nil {
			return nil, nil, err
		}

		return pkScript, sigScript, nil

	case OutputP2TR:
		return nil, nil, ErrTaprootOutputType

	default:
		return nil, nil, fmt.Errorf("unexpected output type: %v",
			outputType)
	}
}
