package swap

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
)

// preimageSize is the size a preimage revealed in a claim has to have.
const preimageSize = 32

// SubmarineScript constructs the legacy redeem script locking the on-chain
// leg of a submarine swap.
//
// OP_HASH160 <ripemd160(preimageHash)> OP_EQUAL
// OP_IF
//
//	<claimKey>
//
// OP_ELSE
//
//	<timeoutBlockHeight> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	<refundKey>
//
// OP_ENDIF
// OP_CHECKSIG
func SubmarineScript(preimageHash lntypes.Hash, claimKey,
	refundKey *btcec.PublicKey, timeoutBlockHeight uint32) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(input.Ripemd160H(preimageHash[:]))
	builder.AddOp(txscript.OP_EQUAL)

	builder.AddOp(txscript.OP_IF)
	builder.AddData(claimKey.SerializeCompressed())

	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(timeoutBlockHeight))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(refundKey.SerializeCompressed())
	builder.AddOp(txscript.OP_ENDIF)

	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}

// ReverseScript constructs the legacy redeem script locking the on-chain leg
// of a reverse swap. Unlike the submarine variant it enforces the size of the
// revealed preimage, since here the counterparty is the one claiming.
//
// OP_SIZE <32> OP_EQUAL
// OP_IF
//
//	OP_HASH160 <ripemd160(preimageHash)> OP_EQUALVERIFY
//	<claimKey>
//
// OP_ELSE
//
//	OP_DROP
//	<timeoutBlockHeight> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	<refundKey>
//
// OP_ENDIF
// OP_CHECKSIG
func ReverseScript(preimageHash lntypes.Hash, claimKey,
	refundKey *btcec.PublicKey, timeoutBlockHeight uint32) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(preimageSize)
	builder.AddOp(txscript.OP_EQUAL)

	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(input.Ripemd160H(preimageHash[:]))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddData(claimKey.SerializeCompressed())

	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_DROP)
	builder.AddInt64(int64(timeoutBlockHeight))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(refundKey.SerializeCompressed())
	builder.AddOp(txscript.OP_ENDIF)

	builder.AddOp(txscript.OP_CHECKSIG)

	return builder.Script()
}
