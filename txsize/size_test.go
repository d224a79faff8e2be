package txsize

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/rollup-telemetry/rpcclient"
)

func addrPtr(hex string) *common.Address {
	a := common.HexToAddress(hex)
	return &a
}

func TestEncodedSize_LegacyTransfer(t *testing.T) {
	// nonce 3 (1) + gas 21000 (3) + to (21) + 1 ether (9) + empty input (1)
	// + gas price 1 gwei (5) + signature (65) + list overhead (3) = 108
	tx := &rpcclient.RawTransaction{
		Type:     0,
		Nonce:    3,
		Gas:      21_000,
		To:       addrPtr("0x1111111111111111111111111111111111111111"),
		Value:    uint256.MustFromDecimal("1000000000000000000"),
		GasPrice: big.NewInt(1_000_000_000),
	}
	assert.Equal(t, uint64(108), EncodedSize(tx))
}

func TestEncodedSize_DynamicFeeWithInput(t *testing.T) {
	// signature (65) + envelope (1) + nonce 42 (1) + gas 100000 (4)
	// + to (21) + zero value (1) + input prefix (3) + input (1024)
	// + tip 2 gwei (5) + fee cap 100 gwei (6) + empty access list (1)
	// + chain id 6342 (3) + list overhead (3) = 1138
	tx := &rpcclient.RawTransaction{
		Type:      2,
		Nonce:     42,
		Gas:       100_000,
		To:        addrPtr("0x2222222222222222222222222222222222222222"),
		Value:     uint256.NewInt(0),
		Input:     make([]byte, 1024),
		GasTipCap: big.NewInt(2_000_000_000),
		GasFeeCap: big.NewInt(100_000_000_000),
		ChainID:   big.NewInt(6342),
	}
	assert.Equal(t, uint64(1138), EncodedSize(tx))
}

func TestEncodedSize_Deposit(t *testing.T) {
	// signature (65) + envelope (1) + deposit overhead (100) + nonce 0 (1)
	// + gas 1000000 (4) + to (21) + zero value (1) + input prefix (2)
	// + input (200) + list overhead (3) = 398
	tx := &rpcclient.RawTransaction{
		Type:  0x7e,
		Nonce: 0,
		Gas:   1_000_000,
		To:    addrPtr("0x3333333333333333333333333333333333333333"),
		Value: uint256.NewInt(0),
		Input: make([]byte, 200),
	}
	assert.Equal(t, uint64(398), EncodedSize(tx))
}

func TestEncodedSize_ContractCreation(t *testing.T) {
	with := &rpcclient.RawTransaction{
		Nonce: 1, Gas: 21_000,
		To:    addrPtr("0x4444444444444444444444444444444444444444"),
		Value: uint256.NewInt(0),
	}
	without := &rpcclient.RawTransaction{
		Nonce: 1, Gas: 21_000,
		Value: uint256.NewInt(0),
	}
	// An absent to-address is a single empty item instead of 21 bytes.
	assert.Equal(t, EncodedSize(with)-20, EncodedSize(without))
}

func TestAccessListSize(t *testing.T) {
	tests := []struct {
		name string
		list []rpcclient.AccessTuple
		want uint64
	}{
		{name: "empty", list: nil, want: 1},
		{
			name: "single address no keys",
			list: []rpcclient.AccessTuple{
				{Address: common.HexToAddress("0x01")},
			},
			want: 21 + 1 + 1, // tuple + inner key list + outer prefix
		},
		{
			name: "two addresses three keys",
			list: []rpcclient.AccessTuple{
				{Address: common.HexToAddress("0x01"), StorageKeys: []common.Hash{{}, {}}},
				{Address: common.HexToAddress("0x02"), StorageKeys: []common.Hash{{}}},
			},
			// (21 + 1 + 2*33) + (21 + 1 + 33) = 143, prefix 2 for len >= 56
			want: 143 + 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, accessListSize(tt.list))
		})
	}
}

func TestRlpSizes(t *testing.T) {
	tests := []struct {
		val  uint64
		want uint64
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{128, 2},
		{255, 2},
		{256, 3},
		{21_000, 3},
		{1 << 56, 9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rlpUintSize(tt.val), "rlpUintSize(%d)", tt.val)
		assert.Equal(t, tt.want, rlpBigSize(new(big.Int).SetUint64(tt.val)), "rlpBigSize(%d)", tt.val)
		assert.Equal(t, tt.want, rlpU256Size(uint256.NewInt(tt.val)), "rlpU256Size(%d)", tt.val)
	}
	assert.Equal(t, uint64(1), rlpBigSize(nil))
	assert.Equal(t, uint64(1), rlpU256Size(nil))

	assert.Equal(t, uint64(1), rlpLengthPrefixSize(0))
	assert.Equal(t, uint64(1), rlpLengthPrefixSize(55))
	assert.Equal(t, uint64(2), rlpLengthPrefixSize(56))
	assert.Equal(t, uint64(2), rlpLengthPrefixSize(255))
	assert.Equal(t, uint64(3), rlpLengthPrefixSize(256))
}

func TestDAInput(t *testing.T) {
	input := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	tx := &rpcclient.RawTransaction{
		Type:      2,
		Nonce:     7,
		Gas:       50_000,
		To:        addrPtr("0x5555555555555555555555555555555555555555"),
		Value:     uint256.NewInt(0),
		Input:     input,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(1),
	}
	buf := DAInput(tx)
	require.Equal(t, EncodedSize(tx), uint64(len(buf)))
	assert.Equal(t, byte(2), buf[0], "envelope byte leads the stream")
	assert.Equal(t, input, buf[1:1+len(input)])
	for i := 1 + len(input); i < len(buf); i++ {
		assert.Zero(t, buf[i], "signature and padding bytes are zero")
	}
}

func TestDAInput_LegacyHasNoEnvelope(t *testing.T) {
	tx := &rpcclient.RawTransaction{
		Nonce: 1, Gas: 21_000,
		To:    addrPtr("0x6666666666666666666666666666666666666666"),
		Value: uint256.NewInt(1),
	}
	buf := DAInput(tx)
	require.Equal(t, EncodedSize(tx), uint64(len(buf)))
	for i, b := range buf {
		assert.Zero(t, b, "byte %d", i)
	}
}

func TestDASize_DepositIsZero(t *testing.T) {
	tx := &rpcclient.RawTransaction{
		Type:  0x7e,
		Gas:   1_000_000,
		Value: uint256.NewInt(0),
		Input: make([]byte, 200),
	}
	assert.Zero(t, DASize(tx))

	// The same payload as a regular typed tx has a DA footprint.
	tx.Type = 2
	assert.NotZero(t, DASize(tx))
}

func TestDASize_MatchesCompressor(t *testing.T) {
	tx := &rpcclient.RawTransaction{
		Type:     0,
		Nonce:    3,
		Gas:      21_000,
		To:       addrPtr("0x7777777777777777777777777777777777777777"),
		Value:    uint256.MustFromDecimal("1000000000000000000"),
		GasPrice: big.NewInt(1_000_000_000),
	}
	assert.Equal(t, uint64(FlzCompressLen(DAInput(tx))), DASize(tx))
}
