package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/flowpredict/internal/crypto"
	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// fallbackGas is used when estimation fails, so a reverting call still
// lands on chain and its reason can be recovered from the receipt block.
const fallbackGas = 300_000

// Broadcaster is the node surface the local wallet needs to send a tx.
type Broadcaster interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ Broadcaster = (*ethclient.Client)(nil)

// DialFunc opens a Broadcaster for an RPC URL.
type DialFunc func(ctx context.Context, rpcURL string) (Broadcaster, error)

// DialEthclient is the production DialFunc.
func DialEthclient(ctx context.Context, rpcURL string) (Broadcaster, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// LocalProvider is a wallet backed by a key held in-process. Like a browser
// wallet it tracks the networks it knows and the one currently selected, and
// it answers 4902 for chains that were never added.
type LocalProvider struct {
	signer *crypto.TxSigner
	dial   DialFunc
	logger *slog.Logger

	mu       sync.Mutex
	networks map[string]domain.NetworkDescriptor
	active   *big.Int
	clients  map[string]Broadcaster
	feeds    map[*feed]struct{}
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider starts on chain active with the given known networks.
func NewLocalProvider(signer *crypto.TxSigner, active *big.Int, known []domain.NetworkDescriptor, dial DialFunc, logger *slog.Logger) *LocalProvider {
	if dial == nil {
		dial = DialEthclient
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &LocalProvider{
		signer:   signer,
		dial:     dial,
		logger:   logger.With(slog.String("component", "wallet_local")),
		networks: make(map[string]domain.NetworkDescriptor),
		active:   new(big.Int).Set(active),
		clients:  make(map[string]Broadcaster),
		feeds:    make(map[*feed]struct{}),
	}
	for _, n := range known {
		p.networks[n.ChainID.String()] = n
	}
	return p
}

func (p *LocalProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	return []common.Address{p.signer.Address()}, nil
}

func (p *LocalProvider) ChainID(context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.active), nil
}

func (p *LocalProvider) SwitchChain(_ context.Context, chainID *big.Int) error {
	p.mu.Lock()
	if _, ok := p.networks[chainID.String()]; !ok {
		p.mu.Unlock()
		return &Error{
			Code:    CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %s", chainID),
			Kind:    domain.ErrChainNotAdded,
		}
	}
	changed := p.active.Cmp(chainID) != 0
	p.active = new(big.Int).Set(chainID)
	p.mu.Unlock()

	if changed {
		p.emit(Event{Kind: EventChainChanged, ChainID: new(big.Int).Set(chainID)})
	}
	return nil
}

func (p *LocalProvider) AddChain(_ context.Context, network domain.NetworkDescriptor) error {
	if network.ChainID == nil || network.PrimaryRPC() == "" {
		return &Error{Message: "invalid chain parameters", Kind: domain.ErrRPC}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.networks[network.ChainID.String()] = network
	return nil
}

func (p *LocalProvider) backend(ctx context.Context) (Broadcaster, *big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	chainID := new(big.Int).Set(p.active)
	key := chainID.String()
	if c, ok := p.clients[key]; ok {
		return c, chainID, nil
	}
	network, ok := p.networks[key]
	if !ok {
		return nil, nil, &Error{Code: CodeChainDisconnected, Message: "active chain has no rpc", Kind: domain.ErrRPC}
	}
	c, err := p.dial(ctx, network.PrimaryRPC())
	if err != nil {
		return nil, nil, Classify(err)
	}
	p.clients[key] = c
	return c, chainID, nil
}

func (p *LocalProvider) SendTransaction(ctx context.Context, req domain.TxRequest) (common.Hash, error) {
	if req.From != (common.Address{}) && req.From != p.signer.Address() {
		return common.Hash{}, &Error{Code: CodeUnauthorized, Message: "unknown account " + req.From.Hex(), Kind: domain.ErrRPC}
	}
	client, chainID, err := p.backend(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	from := p.signer.Address()
	to := req.To
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gas := req.Gas
	if gas == 0 {
		gas, err = client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: req.Data, Value: value})
		if err != nil {
			p.logger.DebugContext(ctx, "gas estimate failed, using fallback",
				slog.String("error", err.Error()),
			)
			gas = fallbackGas
		}
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, Classify(err)
	}
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, Classify(err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasPrice,
		GasFeeCap: new(big.Int).Mul(gasPrice, big.NewInt(2)),
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := p.signer.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, &Error{Message: err.Error(), Kind: domain.ErrRPC}
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, Classify(err)
	}
	return signed.Hash(), nil
}

func (p *LocalProvider) Subscribe(context.Context) (Subscription, error) {
	var f *feed
	f = newFeed(8, func() {
		p.mu.Lock()
		delete(p.feeds, f)
		p.mu.Unlock()
	})
	p.mu.Lock()
	p.feeds[f] = struct{}{}
	p.mu.Unlock()
	return f, nil
}

// emit delivers ev to every live feed without blocking the caller.
func (p *LocalProvider) emit(ev Event) {
	p.mu.Lock()
	feeds := make([]*feed, 0, len(p.feeds))
	for f := range p.feeds {
		feeds = append(feeds, f)
	}
	p.mu.Unlock()

	for _, f := range feeds {
		select {
		case <-f.quit:
		case f.events <- ev:
		default:
			p.logger.Warn("wallet event dropped, subscriber is slow", slog.String("kind", string(ev.Kind)))
		}
	}
}
