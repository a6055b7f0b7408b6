package swap

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
)

// Leaf is a single tapscript leaf of a swap tree.
type Leaf struct {
	// Version is the consensus leaf version.
	Version txscript.TapscriptLeafVersion

	// Script is the raw leaf script.
	Script []byte
}

// TapLeaf converts the leaf into its txscript representation.
func (l *Leaf) TapLeaf() txscript.TapLeaf {
	return txscript.NewTapLeaf(l.Version, l.Script)
}

// Tree is the script tree of a Taproot swap, holding the cooperative claim
// path keys implicitly through the tweaked output key and the two script
// spend paths explicitly.
type Tree struct {
	// ClaimLeaf is the preimage spend path.
	ClaimLeaf Leaf

	// RefundLeaf is the timeout spend path.
	RefundLeaf Leaf
}

// leafJSON is the serialization format of a single leaf, compatible with the
// format the API exposes to clients.
type leafJSON struct {
	Version uint8  `json:"version"`
	Output  string `json:"output"`
}

// treeJSON is the serialization format of a swap tree.
type treeJSON struct {
	ClaimLeaf  leafJSON `json:"claimLeaf"`
	RefundLeaf leafJSON `json:"refundLeaf"`
}

// NewSubmarineTree constructs the script tree for a Taproot submarine swap.
// The claim path reveals the preimage and is keyed to us, the refund path
// unlocks for the counterparty after the timeout.
func NewSubmarineTree(preimageHash lntypes.Hash, claimKey,
	refundKey *btcec.PublicKey, timeoutBlockHeight uint32) (*Tree, error) {

	claimScript, err := submarineClaimLeaf(preimageHash, claimKey)
	if err != nil {
		return nil, err
	}

	return newTree(claimScript, refundKey, timeoutBlockHeight)
}

// NewReverseTree constructs the script tree for a Taproot reverse swap. The
// claim path enforces the preimage size and is keyed to the counterparty,
// the refund path unlocks for us after the timeout.
func NewReverseTree(preimageHash lntypes.Hash, claimKey,
	refundKey *btcec.PublicKey, timeoutBlockHeight uint32) (*Tree, error) {

	claimScript, err := reverseClaimLeaf(preimageHash, claimKey)
	if err != nil {
		return nil, err
	}

	return newTree(claimScript, refundKey, timeoutBlockHeight)
}

func newTree(claimScript []byte, refundKey *btcec.PublicKey,
	timeoutBlockHeight uint32) (*Tree, error) {

	refundScript, err := refundLeaf(refundKey, timeoutBlockHeight)
	if err != nil {
		return nil, err
	}

	return &Tree{
		ClaimLeaf: Leaf{
			Version: txscript.BaseLeafVersion,
			Script:  claimScript,
		},
		RefundLeaf: Leaf{
			Version: txscript.BaseLeafVersion,
			Script:  refundScript,
		},
	}, nil
}

// RootHash returns the merkle root of the tree with both leaves at depth one.
func (t *Tree) RootHash() [32]byte {
	tree := txscript.AssembleTaprootScriptTree(
		t.ClaimLeaf.TapLeaf(), t.RefundLeaf.TapLeaf(),
	)

	return [32]byte(tree.RootNode.TapHash())
}

// TaprootOutputKey aggregates our key and the counterparty key with MuSig2
// and tweaks the aggregate with the tree root, yielding the Taproot output
// key of the swap. Key order matters and has to match on both sides.
func (t *Tree) TaprootOutputKey(ourKey,
	theirKey *btcec.PublicKey) (*btcec.PublicKey, error) {

	rootHash := t.RootHash()

	aggregate, _, _, err := musig2.AggregateKeys(
		[]*btcec.PublicKey{ourKey, theirKey}, false,
		musig2.WithTaprootKeyTweak(rootHash[:]),
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate swap keys: %w", err)
	}

	return aggregate.FinalKey, nil
}

// Serialize encodes the tree into the JSON wire format.
func (t *Tree) Serialize() ([]byte, error) {
	return json.Marshal(treeJSON{
		ClaimLeaf: leafJSON{
			Version: uint8(t.ClaimLeaf.Version),
			Output:  hex.EncodeToString(t.ClaimLeaf.Script),
		},
		RefundLeaf: leafJSON{
			Version: uint8(t.RefundLeaf.Version),
			Output:  hex.EncodeToString(t.RefundLeaf.Script),
		},
	})
}

// DeserializeTree decodes a tree from the JSON wire format.
func DeserializeTree(data []byte) (*Tree, error) {
	var enc treeJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, err
	}

	claimScript, err := hex.DecodeString(enc.ClaimLeaf.Output)
	if err != nil {
		return nil, err
	}
	refundScript, err := hex.DecodeString(enc.RefundLeaf.Output)
	if err != nil {
		return nil, err
	}

	return &Tree{
		ClaimLeaf: Leaf{
			Version: txscript.TapscriptLeafVersion(
				enc.ClaimLeaf.Version,
			),
			Script: claimScript,
		},
		RefundLeaf: Leaf{
			Version: txscript.TapscriptLeafVersion(
				enc.RefundLeaf.Version,
			),
			Script: refundScript,
		},
	}, nil
}

// submarineClaimLeaf builds the claim leaf of a submarine swap tree.
//
// OP_HASH160 <ripemd160(preimageHash)> OP_EQUALVERIFY <claimKey> OP_CHECKSIG
func submarineClaimLeaf(preimageHash lntypes.Hash,
	claimKey *btcec.PublicKey) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(input.Ripemd160H(preimageHash[:]))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(schnorr.SerializePubKey(claimKey))
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// reverseClaimLeaf builds the claim leaf of a reverse swap tree.
//
// OP_SIZE <32> OP_EQUALVERIFY
// OP_HASH160 <ripemd160(preimageHash)> OP_EQUALVERIFY
// <claimKey> OP_CHECKSIG
func reverseClaimLeaf(preimageHash lntypes.Hash,
	claimKey *btcec.PublicKey) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(preimageSize)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(input.Ripemd160H(preimageHash[:]))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(schnorr.SerializePubKey(claimKey))
	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// refundLeaf builds the timeout leaf shared by both tree flavors.
//
// <refundKey> OP_CHECKSIGVERIFY <timeoutBlockHeight> OP_CHECKLOCKTIMEVERIFY
func refundLeaf(refundKey *btcec.PublicKey,
	timeoutBlockHeight uint32) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddData(schnorr.SerializePubKey(refundKey))
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddInt64(int64(timeoutBlockHeight))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)

	return builder.Script()
}
