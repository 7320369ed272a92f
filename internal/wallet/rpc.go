package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// RPCProvider talks to an external wallet that exposes the EIP-1193 methods
// over JSON-RPC. Notifications need a websocket or IPC endpoint.
type RPCProvider struct {
	client *rpc.Client
	logger *slog.Logger
}

var _ Provider = (*RPCProvider)(nil)

// DialRPC connects to the wallet endpoint.
func DialRPC(ctx context.Context, endpoint string, logger *slog.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("wallet: dial %s: %w: %w", endpoint, domain.ErrWalletUnavailable, err)
	}
	return NewRPCProvider(client, logger), nil
}

// NewRPCProvider wraps an existing client.
func NewRPCProvider(client *rpc.Client, logger *slog.Logger) *RPCProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCProvider{client: client, logger: logger.With(slog.String("component", "wallet_rpc"))}
}

// Close releases the connection.
func (p *RPCProvider) Close() { p.client.Close() }

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, Classify(err)
	}
	return accounts, nil
}

func (p *RPCProvider) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := p.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return nil, Classify(err)
	}
	return id.ToInt(), nil
}

func (p *RPCProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	param := map[string]string{"chainId": hexutil.EncodeBig(chainID)}
	if err := p.client.CallContext(ctx, nil, "wallet_switchEthereumChain", param); err != nil {
		return Classify(err)
	}
	return nil
}

func (p *RPCProvider) AddChain(ctx context.Context, network domain.NetworkDescriptor) error {
	if err := p.client.CallContext(ctx, nil, "wallet_addEthereumChain", network.AddChainParams()); err != nil {
		return Classify(err)
	}
	return nil
}

// sendTxArgs is the eth_sendTransaction parameter object.
type sendTxArgs struct {
	From  common.Address  `json:"from"`
	To    common.Address  `json:"to"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
}

func (p *RPCProvider) SendTransaction(ctx context.Context, req domain.TxRequest) (common.Hash, error) {
	args := sendTxArgs{From: req.From, To: req.To, Data: req.Data}
	if req.Value != nil && req.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(req.Value)
	}
	if req.Gas > 0 {
		gas := hexutil.Uint64(req.Gas)
		args.Gas = &gas
	}

	var hash common.Hash
	if err := p.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, Classify(err)
	}
	return hash, nil
}

// Subscribe opens accountsChanged and chainChanged subscriptions and merges
// them into one feed.
func (p *RPCProvider) Subscribe(ctx context.Context) (Subscription, error) {
	accountsCh := make(chan []common.Address, 4)
	chainCh := make(chan hexutil.Big, 4)

	accSub, err := p.client.EthSubscribe(ctx, accountsCh, "accountsChanged")
	if err != nil {
		return nil, Classify(err)
	}
	chainSub, err := p.client.EthSubscribe(ctx, chainCh, "chainChanged")
	if err != nil {
		accSub.Unsubscribe()
		return nil, Classify(err)
	}

	f := newFeed(8, func() {
		accSub.Unsubscribe()
		chainSub.Unsubscribe()
	})

	go func() {
		defer close(f.events)
		for {
			select {
			case <-f.quit:
				return
			case accounts := <-accountsCh:
				if !f.send(Event{Kind: EventAccountsChanged, Accounts: accounts}) {
					return
				}
			case id := <-chainCh:
				if !f.send(Event{Kind: EventChainChanged, ChainID: id.ToInt()}) {
					return
				}
			case err := <-accSub.Err():
				p.logSubErr("accountsChanged", err)
				f.Unsubscribe()
				return
			case err := <-chainSub.Err():
				p.logSubErr("chainChanged", err)
				f.Unsubscribe()
				return
			}
		}
	}()

	return f, nil
}

func (p *RPCProvider) logSubErr(topic string, err error) {
	if err == nil {
		return
	}
	p.logger.Warn("wallet subscription ended",
		slog.String("topic", topic),
		slog.String("error", err.Error()),
	)
}
