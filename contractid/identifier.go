// Package contractid resolves which protocol or token a deployed
// contract belongs to, layering cheap detection methods over expensive
// ones: ERC-20 style name()/symbol() calls first, then the block
// explorer's verified metadata, then bytecode fingerprinting, with a
// deterministic fallback name when everything fails.
package contractid

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/NethermindEth/rollup-telemetry/blockscout"
	"github.com/NethermindEth/rollup-telemetry/cachedb"
	"github.com/NethermindEth/rollup-telemetry/rpcclient"
)

// Function selectors tried during RPC detection.
var (
	nameSelector   = hexutil.MustDecode("0x06fdde03") // name()
	symbolSelector = hexutil.MustDecode("0x95d89b41") // symbol()
)

// Info is the identification result for one contract.
type Info struct {
	Name       string  `json:"name"`
	Symbol     string  `json:"symbol"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"` // 0.0 to 1.0
	Source     string  `json:"source"`
}

// Identifier runs the detection pipeline. The cache is optional.
type Identifier struct {
	client   *rpcclient.Client
	explorer *blockscout.Client
	cache    *cachedb.DB
	log      log.Logger
}

// New creates an identifier; cache may be nil.
func New(client *rpcclient.Client, explorer *blockscout.Client, cache *cachedb.DB) *Identifier {
	return &Identifier{
		client:   client,
		explorer: explorer,
		cache:    cache,
		log:      log.New("component", "contractid"),
	}
}

// Identify resolves the contract at addr, consulting the cache first.
// It never fails outright: when every method comes up empty a low
// confidence fallback entry is returned.
func (id *Identifier) Identify(ctx context.Context, addr common.Address) (*Info, error) {
	if id.cache != nil {
		if blob, ok, err := id.cache.Contract(addr); err == nil && ok {
			var info Info
			if err := json.Unmarshal(blob, &info); err == nil {
				return &info, nil
			}
		}
	}

	info, err := id.identify(ctx, addr)
	if err != nil {
		return nil, err
	}
	if id.cache != nil {
		if blob, err := json.Marshal(info); err == nil {
			if err := id.cache.PutContract(addr, blob); err != nil {
				id.log.Warn("Contract cache write failed", "address", addr, "err", err)
			}
		}
	}
	return info, nil
}

func (id *Identifier) identify(ctx context.Context, addr common.Address) (*Info, error) {
	if info, err := id.tryNameSymbol(ctx, addr); err == nil {
		id.log.Debug("Identified via name()/symbol()", "address", addr, "name", info.Name)
		return info, nil
	}
	if info, err := id.tryExplorer(ctx, addr); err == nil {
		id.log.Debug("Identified via explorer", "address", addr, "name", info.Name)
		return info, nil
	}
	if info, err := id.tryFingerprint(ctx, addr); err == nil {
		id.log.Debug("Identified via bytecode fingerprint", "address", addr, "name", info.Name)
		return info, nil
	}
	id.log.Debug("Contract not identified, using fallback", "address", addr)
	return fallbackInfo(addr), nil
}

// tryNameSymbol calls name() and symbol(); the fastest method and the
// one that works for nearly every token.
func (id *Identifier) tryNameSymbol(ctx context.Context, addr common.Address) (*Info, error) {
	ret, err := id.client.CallContract(ctx, addr, nameSelector)
	if err != nil {
		return nil, err
	}
	name, err := decodeString(ret)
	if err != nil || name == "" {
		return nil, fmt.Errorf("name() not decodable: %w", err)
	}

	symbol := name
	if len(symbol) > 4 {
		symbol = symbol[:4]
	}
	if ret, err := id.client.CallContract(ctx, addr, symbolSelector); err == nil {
		if s, err := decodeString(ret); err == nil && s != "" {
			symbol = s
		}
	}

	return &Info{
		Name:       name,
		Symbol:     symbol,
		Category:   categoryFromName(name),
		Confidence: 0.85,
		Source:     "rpc name/symbol",
	}, nil
}

// tryExplorer uses the explorer's verified metadata; the most reliable
// method when the contract is verified.
func (id *Identifier) tryExplorer(ctx context.Context, addr common.Address) (*Info, error) {
	if id.explorer == nil {
		return nil, errors.New("no explorer client")
	}
	source, err := id.explorer.SourceCode(ctx, addr)
	if err != nil {
		return nil, err
	}
	if source.ContractName == "" || source.SourceCode == "" ||
		source.SourceCode == "Contract source code not verified" {
		return nil, errors.New("contract not verified")
	}
	return &Info{
		Name:       source.ContractName,
		Symbol:     strings.ToUpper(abbreviate(source.ContractName)),
		Category:   categoryFromName(source.ContractName),
		Confidence: 0.95,
		Source:     "explorer verified source",
	}, nil
}

// minimalProxyPrefix is the EIP-1167 runtime prelude; the 20 bytes after
// it are the implementation address.
var minimalProxyPrefix = hexutil.MustDecode("0x363d3d373d3d3d363d73")

// knownCodeHashes maps keccak256 of full runtime bytecode onto known
// deployments. Extended as notable protocol deployments are catalogued.
var knownCodeHashes = map[common.Hash]Info{}

// tryFingerprint matches the runtime bytecode against known deployments
// and well-known code shapes.
func (id *Identifier) tryFingerprint(ctx context.Context, addr common.Address) (*Info, error) {
	code, err := id.client.CodeAt(ctx, addr)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, errors.New("no code at address")
	}
	if info, ok := knownCodeHashes[crypto.Keccak256Hash(code)]; ok {
		info.Source = "bytecode fingerprint"
		info.Confidence = 0.9
		return &info, nil
	}
	if len(code) >= len(minimalProxyPrefix)+20 &&
		strings.HasPrefix(hexutil.Encode(code), hexutil.Encode(minimalProxyPrefix)) {
		impl := common.BytesToAddress(code[len(minimalProxyPrefix) : len(minimalProxyPrefix)+20])
		return &Info{
			Name:       fmt.Sprintf("Minimal Proxy -> %s", impl.Hex()),
			Symbol:     "PROXY",
			Category:   "Proxy",
			Confidence: 0.9,
			Source:     "bytecode fingerprint",
		}, nil
	}
	return nil, errors.New("unrecognized bytecode")
}

func fallbackInfo(addr common.Address) *Info {
	hex := addr.Hex()
	return &Info{
		Name:       fmt.Sprintf("Unknown (%s…%s)", hex[:6], hex[len(hex)-4:]),
		Symbol:     "???",
		Category:   "Unknown",
		Confidence: 0.1,
		Source:     "fallback",
	}
}

// decodeString decodes a single ABI-encoded string return value.
func decodeString(ret []byte) (string, error) {
	if len(ret) < 64 {
		return "", errors.New("return data too short")
	}
	offset := binary.BigEndian.Uint64(ret[24:32])
	if offset+32 > uint64(len(ret)) {
		return "", errors.New("string offset out of range")
	}
	length := binary.BigEndian.Uint64(ret[offset+24 : offset+32])
	if offset+32+length > uint64(len(ret)) {
		return "", errors.New("string length out of range")
	}
	s := strings.TrimRight(string(ret[offset+32:offset+32+length]), "\x00")
	if !utf8.ValidString(s) {
		return "", errors.New("string not valid UTF-8")
	}
	return s, nil
}

func categoryFromName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "lend"), strings.Contains(lower, "borrow"),
		strings.Contains(lower, "vault"):
		return "Lending"
	case strings.Contains(lower, "swap"), strings.Contains(lower, "router"),
		strings.Contains(lower, "pool"), strings.Contains(lower, "pair"):
		return "DEX"
	case strings.Contains(lower, "usd"), strings.Contains(lower, "dai"),
		strings.Contains(lower, "stable"):
		return "Stablecoin"
	case strings.Contains(lower, "bridge"):
		return "Bridge"
	case strings.Contains(lower, "nft"), strings.Contains(lower, "collect"):
		return "NFT"
	case strings.Contains(lower, "stake"), strings.Contains(lower, "staking"):
		return "Staking"
	case strings.Contains(lower, "token"), strings.Contains(lower, "coin"):
		return "Token"
	}
	return "Other"
}

// abbreviate builds a short symbol from the upper-case letters of a
// contract name, e.g. "WrappedEther" -> "WE".
func abbreviate(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
		if b.Len() >= 6 {
			break
		}
	}
	if b.Len() == 0 && len(name) >= 3 {
		return name[:3]
	}
	return b.String()
}
