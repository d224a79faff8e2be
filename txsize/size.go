// Package txsize computes the wire footprint of transactions exactly as
// the chain posts them: the length of the canonical EIP-2718 encoding,
// and the FastLZ-compressed data-availability contribution.
package txsize

import (
	"math/big"
	"math/bits"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/NethermindEth/rollup-telemetry/params"
	"github.com/NethermindEth/rollup-telemetry/rpcclient"
)

const (
	signatureSize  = 65 // v (1) + r (32) + s (32)
	listOverhead   = 3
	addressSize    = 21 // 1 length byte + 20 address bytes
	storageKeySize = 33 // 1 length byte + 32 key bytes
	// depositOverhead covers the sourceHash, mint and isSystemTx fields
	// of deposit transactions.
	depositOverhead = 100
)

// EncodedSize returns the length in bytes of the transaction's canonical
// EIP-2718 encoding, computed arithmetically from the parsed fields.
func EncodedSize(tx *rpcclient.RawTransaction) uint64 {
	size := uint64(signatureSize)
	size += rlpUintSize(tx.Nonce)
	size += rlpUintSize(tx.Gas)
	if tx.To != nil {
		size += addressSize
	} else {
		size++ // empty string item
	}
	size += rlpU256Size(tx.Value)

	inputLen := uint64(len(tx.Input))
	size += rlpLengthPrefixSize(inputLen) + inputLen

	switch tx.Type {
	case types.LegacyTxType:
		size += rlpBigSize(tx.GasPrice)
	case types.AccessListTxType:
		size += rlpBigSize(tx.GasPrice)
		size += accessListSize(tx.AccessList)
		size++ // envelope type byte
	case types.DynamicFeeTxType:
		size += rlpBigSize(tx.GasTipCap)
		size += rlpBigSize(tx.GasFeeCap)
		size += accessListSize(tx.AccessList)
		size++ // envelope type byte
	case params.DepositTxType:
		size++ // envelope type byte
		size += depositOverhead
	default:
		size += rlpBigSize(tx.GasPrice)
	}

	if tx.Type > 0 && tx.ChainID != nil {
		size += rlpBigSize(tx.ChainID)
	}

	size += listOverhead
	return size
}

// DAInput reconstructs the byte stream the batch poster compresses for
// this transaction: the envelope byte for typed transactions, the input
// data, 65 zero signature bytes, zero-padded to the encoded size. Parity
// with a specific poster's framing is pinned only to this reconstruction;
// the padding rules need revalidating if one is integrated.
func DAInput(tx *rpcclient.RawTransaction) []byte {
	target := EncodedSize(tx)
	buf := make([]byte, 0, target)
	if tx.Type > 0 {
		buf = append(buf, tx.Type)
	}
	buf = append(buf, tx.Input...)
	buf = append(buf, make([]byte, signatureSize)...)
	if pad := int(target) - len(buf); pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}
	return buf
}

// DASize returns the transaction's data-availability contribution: zero
// for deposits, which the sequencer injects without posting, and the
// FastLZ compressed length of the reconstructed stream otherwise.
func DASize(tx *rpcclient.RawTransaction) uint64 {
	if tx.Type == params.DepositTxType {
		return 0
	}
	return uint64(FlzCompressLen(DAInput(tx)))
}

func accessListSize(list []rpcclient.AccessTuple) uint64 {
	if len(list) == 0 {
		return 1
	}
	var size uint64
	for _, tuple := range list {
		size += addressSize
		size += 1 + uint64(len(tuple.StorageKeys))*storageKeySize
	}
	return size + rlpLengthPrefixSize(size)
}

// rlpUintSize is the RLP item size of a uint64: one byte for zero or a
// single byte below 128, otherwise a length byte plus the significant
// bytes.
func rlpUintSize(v uint64) uint64 {
	if v < 0x80 {
		return 1
	}
	return 1 + uint64(bits.Len64(v)+7)/8
}

// rlpBigSize is rlpUintSize for optional big integers; nil counts as zero.
func rlpBigSize(v *big.Int) uint64 {
	if v == nil || v.BitLen() == 0 {
		return 1
	}
	if v.BitLen() < 8 {
		return 1
	}
	return 1 + uint64(v.BitLen()+7)/8
}

func rlpU256Size(v *uint256.Int) uint64 {
	if v == nil || v.IsZero() {
		return 1
	}
	if v.BitLen() < 8 {
		return 1
	}
	return 1 + uint64(v.BitLen()+7)/8
}

// rlpLengthPrefixSize is the size of the RLP length prefix for a string
// of the given length.
func rlpLengthPrefixSize(length uint64) uint64 {
	if length < 56 {
		return 1
	}
	return 1 + uint64(bits.Len64(length)+7)/8
}
