// Package blockscout is a thin client for the chain's Blockscout block
// explorer API. It backs the contract identification tooling; nothing in
// the ingestion pipeline depends on it.
package blockscout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// DefaultBaseURL is the public explorer API endpoint.
const DefaultBaseURL = "https://megaeth.blockscout.com/api"

const requestTimeout = 30 * time.Second

// Client talks to the explorer's Etherscan-compatible API.
type Client struct {
	http    *http.Client
	baseURL string
	log     log.Logger
}

// New creates a client against DefaultBaseURL.
func New() *Client {
	return NewWithBaseURL(DefaultBaseURL)
}

// NewWithBaseURL creates a client against a custom explorer endpoint.
func NewWithBaseURL(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.New("component", "blockscout"),
	}
}

// ContractSource is the verified source metadata of a contract.
type ContractSource struct {
	SourceCode           string `json:"SourceCode"`
	ABI                  string `json:"ABI"`
	ContractName         string `json:"ContractName"`
	CompilerVersion      string `json:"CompilerVersion"`
	OptimizationUsed     string `json:"OptimizationUsed"`
	Runs                 string `json:"Runs"`
	ConstructorArguments string `json:"ConstructorArguments"`
	EVMVersion           string `json:"EVMVersion"`
	LicenseType          string `json:"LicenseType"`
	Proxy                string `json:"Proxy"`
	Implementation       string `json:"Implementation"`
}

// ContractCreation links a contract to its deployer and creation tx.
type ContractCreation struct {
	ContractAddress string `json:"contractAddress"`
	ContractCreator string `json:"contractCreator"`
	TxHash          string `json:"txHash"`
}

// envelope is the explorer's response wrapper. Status "1" means success.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// SourceCode returns the verified source metadata of the given contract.
func (c *Client) SourceCode(ctx context.Context, address common.Address) (*ContractSource, error) {
	query := url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address.Hex()},
	}
	var result []ContractSource
	if err := c.get(ctx, query, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("empty getsourcecode result for %s", address.Hex())
	}
	return &result[0], nil
}

// IsVerified reports whether the contract has verified source code.
func (c *Client) IsVerified(ctx context.Context, address common.Address) (bool, error) {
	source, err := c.SourceCode(ctx, address)
	if err != nil {
		return false, err
	}
	return source.SourceCode != "" && source.SourceCode != "Contract source code not verified", nil
}

// ContractCreations resolves deployer and creation tx for up to five
// contracts, the explorer's batch limit.
func (c *Client) ContractCreations(ctx context.Context, addresses []common.Address) ([]ContractCreation, error) {
	hexes := make([]string, len(addresses))
	for i, addr := range addresses {
		hexes[i] = addr.Hex()
	}
	query := url.Values{
		"module":            {"contract"},
		"action":            {"getcontractcreation"},
		"contractaddresses": {strings.Join(hexes, ",")},
	}
	var result []ContractCreation
	if err := c.get(ctx, query, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, query url.Values, result interface{}) error {
	reqURL := c.baseURL + "?" + query.Encode()
	c.log.Debug("Explorer request", "url", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("explorer returned HTTP %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("invalid explorer response: %w", err)
	}
	if env.Status != "1" {
		return fmt.Errorf("explorer error: %s", env.Message)
	}
	return json.Unmarshal(env.Result, result)
}
