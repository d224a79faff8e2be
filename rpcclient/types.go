package rpcclient

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// RawBlock is a block as the RPC reports it, with the chain-specific
// extensions recognized.
type RawBlock struct {
	Number         uint64
	Hash           common.Hash
	GasUsed        uint64
	GasLimit       uint64
	Time           uint64 // unix seconds
	ExtraData      []byte
	MiniBlockCount uint64 // sub-block counter, 1 when the RPC omits it
	Transactions   []*RawTransaction
}

// RawTransaction is a transaction as the RPC reports it. A nil To means
// contract creation. Optional fee fields are nil when the RPC omits them.
type RawTransaction struct {
	Hash      common.Hash
	From      common.Address
	To        *common.Address
	Input     []byte
	Gas       uint64
	Type      uint8
	Nonce     uint64
	Value     *uint256.Int
	GasPrice  *big.Int
	GasFeeCap *big.Int // maxFeePerGas
	GasTipCap *big.Int // maxPriorityFeePerGas
	ChainID   *big.Int
	V         uint64
	R         *uint256.Int
	S         *uint256.Int

	AccessList []AccessTuple
}

// AccessTuple is one entry of an EIP-2930 access list.
type AccessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

// RawReceipt is a transaction receipt as the RPC reports it.
type RawReceipt struct {
	TxHash            common.Hash
	GasUsed           uint64
	Status            bool
	ContractAddress   *common.Address
	From              common.Address
	EffectiveGasPrice *big.Int
}

// The node quotes integers as hex strings, and chain-specific fields show
// up with or without the 0x prefix depending on node version. hexutil
// insists on the prefix, so the scalar wire types below parse tolerantly.

func parseHexUint64(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return 0, fmt.Errorf("empty hex number %q", s)
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

type hexUint64 uint64

func (h *hexUint64) UnmarshalJSON(input []byte) error {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return err
	}
	v, err := parseHexUint64(s)
	if err != nil {
		return err
	}
	*h = hexUint64(v)
	return nil
}

type hexBig big.Int

func (h *hexBig) UnmarshalJSON(input []byte) error {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return err
	}
	trimmed := strings.TrimPrefix(s, "0x")
	if trimmed == "" {
		return fmt.Errorf("empty hex number %q", s)
	}
	v, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return fmt.Errorf("invalid hex number %q", s)
	}
	*h = hexBig(*v)
	return nil
}

func (h *hexBig) ToInt() *big.Int { return (*big.Int)(h) }

type hexU256 uint256.Int

func (h *hexU256) UnmarshalJSON(input []byte) error {
	var b hexBig
	if err := b.UnmarshalJSON(input); err != nil {
		return err
	}
	v, overflow := uint256.FromBig(b.ToInt())
	if overflow {
		return fmt.Errorf("hex number exceeds 256 bits")
	}
	*h = hexU256(*v)
	return nil
}

func (h *hexU256) ToU256() *uint256.Int { return (*uint256.Int)(h) }

// lenientUint64 additionally accepts a bare JSON number; the chain's RPC
// emits miniBlockCount that way.
type lenientUint64 uint64

func (h *lenientUint64) UnmarshalJSON(input []byte) error {
	if len(input) > 0 && input[0] != '"' {
		var v uint64
		if err := json.Unmarshal(input, &v); err != nil {
			return err
		}
		*h = lenientUint64(v)
		return nil
	}
	var hu hexUint64
	if err := hu.UnmarshalJSON(input); err != nil {
		return err
	}
	*h = lenientUint64(hu)
	return nil
}

// Wire-format mirrors of the raw models. Required fields are pointers so
// absence is detectable; unknown fields are ignored by encoding/json.

type rpcBlock struct {
	Number         *hexUint64        `json:"number"`
	Hash           *common.Hash      `json:"hash"`
	GasUsed        *hexUint64        `json:"gasUsed"`
	GasLimit       *hexUint64        `json:"gasLimit"`
	Timestamp      *hexUint64        `json:"timestamp"`
	ExtraData      hexutil.Bytes     `json:"extraData"`
	MiniBlockCount *lenientUint64    `json:"miniBlockCount"`
	Transactions   []*rpcTransaction `json:"transactions"`
}

func (b *rpcBlock) resolve() (*RawBlock, error) {
	switch {
	case b.Number == nil:
		return nil, errMissingField("block", "number")
	case b.Hash == nil:
		return nil, errMissingField("block", "hash")
	case b.GasUsed == nil:
		return nil, errMissingField("block", "gasUsed")
	case b.GasLimit == nil:
		return nil, errMissingField("block", "gasLimit")
	case b.Timestamp == nil:
		return nil, errMissingField("block", "timestamp")
	}
	raw := &RawBlock{
		Number:         uint64(*b.Number),
		Hash:           *b.Hash,
		GasUsed:        uint64(*b.GasUsed),
		GasLimit:       uint64(*b.GasLimit),
		Time:           uint64(*b.Timestamp),
		ExtraData:      b.ExtraData,
		MiniBlockCount: 1,
	}
	if b.MiniBlockCount != nil {
		raw.MiniBlockCount = uint64(*b.MiniBlockCount)
	}
	raw.Transactions = make([]*RawTransaction, 0, len(b.Transactions))
	for i, tx := range b.Transactions {
		resolved, err := tx.resolve()
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		raw.Transactions = append(raw.Transactions, resolved)
	}
	return raw, nil
}

type rpcAccessTuple struct {
	Address     *common.Address `json:"address"`
	StorageKeys []common.Hash   `json:"storageKeys"`
}

type rpcTransaction struct {
	Hash                 *common.Hash     `json:"hash"`
	From                 *common.Address  `json:"from"`
	To                   *common.Address  `json:"to"`
	Input                hexutil.Bytes    `json:"input"`
	Gas                  *hexUint64       `json:"gas"`
	Type                 *hexUint64       `json:"type"`
	Nonce                *hexUint64       `json:"nonce"`
	Value                *hexU256         `json:"value"`
	GasPrice             *hexBig          `json:"gasPrice"`
	MaxFeePerGas         *hexBig          `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexBig          `json:"maxPriorityFeePerGas"`
	ChainID              *hexBig          `json:"chainId"`
	V                    *hexUint64       `json:"v"`
	R                    *hexU256         `json:"r"`
	S                    *hexU256         `json:"s"`
	AccessList           []rpcAccessTuple `json:"accessList"`
}

func (tx *rpcTransaction) resolve() (*RawTransaction, error) {
	switch {
	case tx.Hash == nil:
		return nil, errMissingField("transaction", "hash")
	case tx.From == nil:
		return nil, errMissingField("transaction", "from")
	case tx.Gas == nil:
		return nil, errMissingField("transaction", "gas")
	case tx.Nonce == nil:
		return nil, errMissingField("transaction", "nonce")
	case tx.V == nil:
		return nil, errMissingField("transaction", "v")
	}
	raw := &RawTransaction{
		Hash:  *tx.Hash,
		From:  *tx.From,
		To:    tx.To,
		Input: tx.Input,
		Gas:   uint64(*tx.Gas),
		Nonce: uint64(*tx.Nonce),
		Value: uint256.NewInt(0),
		V:     uint64(*tx.V),
		R:     uint256.NewInt(0),
		S:     uint256.NewInt(0),
	}
	if tx.Type != nil {
		raw.Type = uint8(*tx.Type)
	}
	if tx.Value != nil {
		raw.Value = tx.Value.ToU256()
	}
	if tx.R != nil {
		raw.R = tx.R.ToU256()
	}
	if tx.S != nil {
		raw.S = tx.S.ToU256()
	}
	if tx.GasPrice != nil {
		raw.GasPrice = tx.GasPrice.ToInt()
	}
	if tx.MaxFeePerGas != nil {
		raw.GasFeeCap = tx.MaxFeePerGas.ToInt()
	}
	if tx.MaxPriorityFeePerGas != nil {
		raw.GasTipCap = tx.MaxPriorityFeePerGas.ToInt()
	}
	if tx.ChainID != nil {
		raw.ChainID = tx.ChainID.ToInt()
	}
	for i, entry := range tx.AccessList {
		if entry.Address == nil {
			return nil, fmt.Errorf("access list entry %d: %w", i, errMissingField("access tuple", "address"))
		}
		raw.AccessList = append(raw.AccessList, AccessTuple{
			Address:     *entry.Address,
			StorageKeys: entry.StorageKeys,
		})
	}
	return raw, nil
}

type rpcReceipt struct {
	TransactionHash   *common.Hash    `json:"transactionHash"`
	GasUsed           *hexUint64      `json:"gasUsed"`
	Status            *hexUint64      `json:"status"`
	ContractAddress   *common.Address `json:"contractAddress"`
	From              *common.Address `json:"from"`
	EffectiveGasPrice *hexBig         `json:"effectiveGasPrice"`
}

func (r *rpcReceipt) resolve() (*RawReceipt, error) {
	switch {
	case r.TransactionHash == nil:
		return nil, errMissingField("receipt", "transactionHash")
	case r.GasUsed == nil:
		return nil, errMissingField("receipt", "gasUsed")
	}
	raw := &RawReceipt{
		TxHash:          *r.TransactionHash,
		GasUsed:         uint64(*r.GasUsed),
		Status:          true, // pre-Byzantium receipts carry no status
		ContractAddress: r.ContractAddress,
	}
	if r.Status != nil {
		raw.Status = *r.Status != 0
	}
	if r.From != nil {
		raw.From = *r.From
	}
	if r.EffectiveGasPrice != nil {
		raw.EffectiveGasPrice = r.EffectiveGasPrice.ToInt()
	}
	return raw, nil
}

func errMissingField(object, field string) error {
	return fmt.Errorf("missing required field %q in %s response", field, object)
}
