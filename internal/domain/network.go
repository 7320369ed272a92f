package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Currency describes the native currency of a chain as wallets expect it in
// wallet_addEthereumChain requests.
type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// NetworkDescriptor is the static description of the single supported chain.
// It is built once at startup and never mutated.
type NetworkDescriptor struct {
	ChainID      *big.Int
	Name         string
	Currency     Currency
	RPCURLs      []string
	ExplorerURLs []string
}

// FlowEVMTestnet returns the descriptor for the Flow EVM Testnet (chain 545).
func FlowEVMTestnet(rpcURL string) NetworkDescriptor {
	return NetworkDescriptor{
		ChainID: big.NewInt(545),
		Name:    "Flow EVM Testnet",
		Currency: Currency{
			Name:     "FLOW",
			Symbol:   "FLOW",
			Decimals: 18,
		},
		RPCURLs:      []string{rpcURL},
		ExplorerURLs: []string{"https://evm-testnet.flowscan.io"},
	}
}

// HexChainID renders the chain id the way EIP-1193 wallets report it ("0x221").
func (n NetworkDescriptor) HexChainID() string {
	if n.ChainID == nil {
		return "0x0"
	}
	return "0x" + n.ChainID.Text(16)
}

// Matches reports whether id equals the expected chain id.
func (n NetworkDescriptor) Matches(id *big.Int) bool {
	return n.ChainID != nil && id != nil && n.ChainID.Cmp(id) == 0
}

// PrimaryRPC returns the first configured RPC URL or "".
func (n NetworkDescriptor) PrimaryRPC() string {
	if len(n.RPCURLs) == 0 {
		return ""
	}
	return n.RPCURLs[0]
}

// TxURL returns the explorer link for a transaction hash, or "" when no
// explorer is configured.
func (n NetworkDescriptor) TxURL(hash string) string {
	if len(n.ExplorerURLs) == 0 || hash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(n.ExplorerURLs[0], "/"), hash)
}

// AddChainParams is the wallet_addEthereumChain payload.
type AddChainParams struct {
	ChainID           string   `json:"chainId"`
	ChainName         string   `json:"chainName"`
	NativeCurrency    Currency `json:"nativeCurrency"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls,omitempty"`
}

// AddChainParams renders the descriptor as a wallet_addEthereumChain payload.
func (n NetworkDescriptor) AddChainParams() AddChainParams {
	return AddChainParams{
		ChainID:           n.HexChainID(),
		ChainName:         n.Name,
		NativeCurrency:    n.Currency,
		RPCURLs:           n.RPCURLs,
		BlockExplorerURLs: n.ExplorerURLs,
	}
}
