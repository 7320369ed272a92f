// Package session owns the wallet connection state machine. It is the only
// writer of connection state; everyone else reads value snapshots.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/chain"
	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/wallet"
)

// BalanceTracker is the balance cache as the session drives it.
type BalanceTracker interface {
	Bind(ctx context.Context, account common.Address)
	Reset()
}

// Binding is the signer-side snapshot the transaction pipeline needs.
type Binding struct {
	Account common.Address
	Writer  *chain.Writer
}

// Session event types published on ch:session.
const (
	EventState = "state"
	EventReset = "session_reset"
	EventError = "error"
)

// Session is the connection state machine:
// Disconnected -> Connecting -> {Connected | WrongNetwork} -> Disconnected.
type Session struct {
	network   domain.NetworkDescriptor
	contract  common.Address
	provider  wallet.Provider
	validator *Validator
	balances  BalanceTracker
	bus       domain.SignalBus
	audit     domain.AuditStore
	logger    *slog.Logger
	now       func() time.Time

	// opMu serializes transitions. It may be held across wallet prompts.
	opMu sync.Mutex

	mu         sync.RWMutex
	state      domain.ConnectionState
	writer     *chain.Writer
	sub        wallet.Subscription
	selfSwitch *big.Int

	life context.Context
	stop context.CancelFunc
}

// Option configures optional collaborators.
type Option func(*Session)

// WithSignalBus publishes every transition on ch:session.
func WithSignalBus(bus domain.SignalBus) Option { return func(s *Session) { s.bus = bus } }

// WithAudit appends every transition to the audit log.
func WithAudit(audit domain.AuditStore) Option { return func(s *Session) { s.audit = audit } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// New creates a disconnected session.
func New(network domain.NetworkDescriptor, contract common.Address, provider wallet.Provider, validator *Validator, balances BalanceTracker, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = wallet.None{}
	}
	life, stop := context.WithCancel(context.Background())
	s := &Session{
		network:   network,
		contract:  contract,
		provider:  provider,
		validator: validator,
		balances:  balances,
		logger:    logger.With(slog.String("component", "session")),
		now:       time.Now,
		life:      life,
		stop:      stop,
	}
	for _, o := range opts {
		o(s)
	}
	s.state = domain.ConnectionState{Status: domain.StatusDisconnected, UpdatedAt: s.now()}
	return s
}

// Close tears down the event subscription. The session is unusable after.
func (s *Session) Close() {
	s.stop()
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// State returns a snapshot of the connection state.
func (s *Session) State() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// Binding returns the bound account and write proxy, or false when the
// session cannot sign.
func (s *Session) Binding() (Binding, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.IsConnected() || s.writer == nil {
		return Binding{}, false
	}
	return Binding{Account: *s.state.Account, Writer: s.writer}, true
}

// WalletPresent reports whether a wallet is configured.
func (s *Session) WalletPresent() bool { return wallet.Present(s.provider) }

// Network returns the expected network.
func (s *Session) Network() domain.NetworkDescriptor { return s.network }

// Connect links the wallet. With no wallet it signals ErrWalletUnavailable
// and stays disconnected. Other failures end Disconnected with an error
// wrapping both ErrConnectionFailed and the cause.
func (s *Session) Connect(ctx context.Context) error {
	if !wallet.Present(s.provider) {
		s.publish(ctx, EventError, domain.ErrWalletUnavailable.Error())
		return domain.ErrWalletUnavailable
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.setState(ctx, domain.ConnectionState{Status: domain.StatusConnecting, Connecting: true})

	account, chainID, err := s.establish(ctx)
	if err != nil {
		s.clear()
		s.unsubscribe()
		s.setState(ctx, domain.ConnectionState{Status: domain.StatusDisconnected})
		s.publish(ctx, EventError, err.Error())
		s.logger.WarnContext(ctx, "connect failed", slog.String("error", err.Error()))
		return fmt.Errorf("session: %w: %w", domain.ErrConnectionFailed, err)
	}

	s.mu.Lock()
	s.writer = chain.NewWriter(s.provider, account, s.contract)
	s.mu.Unlock()

	s.setState(ctx, domain.ConnectionState{
		Status:  domain.StatusConnected,
		Account: &account,
		ChainID: chainID,
		Correct: true,
	})
	s.logger.InfoContext(ctx, "wallet connected", slog.String("account", account.Hex()))

	s.ensureSubscribed(ctx)
	if s.balances != nil {
		s.balances.Bind(ctx, account)
	}
	return nil
}

// establish checks the network (switching when needed) and requests
// accounts. It does not touch state beyond recording the observed chain.
func (s *Session) establish(ctx context.Context) (common.Address, *big.Int, error) {
	chainID, err := s.validator.WalletChainID(ctx)
	if err != nil {
		return common.Address{}, nil, err
	}
	if !s.network.Matches(chainID) {
		s.mu.Lock()
		s.state.ChainID = chainID
		s.mu.Unlock()

		if err := s.switchNetwork(ctx); err != nil {
			return common.Address{}, nil, err
		}
		chainID, err = s.validator.WalletChainID(ctx)
		if err != nil {
			return common.Address{}, nil, err
		}
		if !s.network.Matches(chainID) {
			return common.Address{}, nil, fmt.Errorf("wallet still on chain %s: %w", chainID, domain.ErrNetworkSwitchFailed)
		}
	}

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, nil, errors.New("wallet returned no accounts")
	}
	return accounts[0], chainID, nil
}

// Disconnect clears account, proxy and cached balances. It always succeeds.
func (s *Session) Disconnect(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.disconnectLocked(ctx)
}

func (s *Session) disconnectLocked(ctx context.Context) {
	s.clear()
	s.unsubscribe()
	s.setState(ctx, domain.ConnectionState{Status: domain.StatusDisconnected})
	s.logger.InfoContext(ctx, "wallet disconnected")
}

// SwitchNetwork asks the wallet to move to the expected chain, adding the
// chain definition first when the wallet does not know it. Connection state
// is left as it was, whatever the outcome.
func (s *Session) SwitchNetwork(ctx context.Context) error {
	if !wallet.Present(s.provider) {
		return domain.ErrWalletUnavailable
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.switchNetwork(ctx)
}

// switchNetwork marks the chain change as our own for the duration of the
// wallet call only. Wallets that echo late are caught by the same-chain check
// in handle.
func (s *Session) switchNetwork(ctx context.Context) error {
	s.mu.Lock()
	s.selfSwitch = new(big.Int).Set(s.network.ChainID)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.selfSwitch = nil
		s.mu.Unlock()
	}()

	err := s.provider.SwitchChain(ctx, s.network.ChainID)
	if errors.Is(err, domain.ErrChainNotAdded) {
		s.logger.InfoContext(ctx, "wallet does not know the chain, adding it",
			slog.String("chain_id", s.network.HexChainID()),
		)
		if addErr := s.provider.AddChain(ctx, s.network); addErr != nil {
			err = addErr
		} else {
			err = s.provider.SwitchChain(ctx, s.network.ChainID)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNetworkSwitchFailed, err)
	}
	return nil
}

// clear drops the proxy and balances. Caller holds opMu.
func (s *Session) clear() {
	s.mu.Lock()
	s.writer = nil
	s.mu.Unlock()
	if s.balances != nil {
		s.balances.Reset()
	}
}

func (s *Session) unsubscribe() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.selfSwitch = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *Session) ensureSubscribed(ctx context.Context) {
	s.mu.RLock()
	have := s.sub != nil
	s.mu.RUnlock()
	if have {
		return
	}

	sub, err := s.provider.Subscribe(s.life)
	if err != nil {
		s.logger.WarnContext(ctx, "wallet events unavailable", slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	go s.watch(sub)
}

// watch handles wallet notifications for one subscription.
func (s *Session) watch(sub wallet.Subscription) {
	for {
		select {
		case <-s.life.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if !s.subscribed(sub) {
				return
			}
			s.handle(s.life, ev)
			if !s.subscribed(sub) {
				return
			}
		}
	}
}

func (s *Session) subscribed(sub wallet.Subscription) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sub == sub
}

func (s *Session) handle(ctx context.Context, ev wallet.Event) {
	switch ev.Kind {
	case wallet.EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			s.logger.InfoContext(ctx, "wallet reported no accounts")
			s.Disconnect(ctx)
			return
		}
		st := s.State()
		if st.Account != nil && *st.Account == ev.Accounts[0] {
			return
		}
		s.logger.InfoContext(ctx, "wallet account changed", slog.String("account", ev.Accounts[0].Hex()))
		if err := s.Connect(ctx); err != nil {
			s.logger.WarnContext(ctx, "reconnect after account change failed", slog.String("error", err.Error()))
		}

	case wallet.EventChainChanged:
		s.mu.RLock()
		own := s.selfSwitch != nil && ev.ChainID != nil && s.selfSwitch.Cmp(ev.ChainID) == 0
		same := s.state.ChainID != nil && ev.ChainID != nil && s.state.ChainID.Cmp(ev.ChainID) == 0
		s.mu.RUnlock()
		if own || same {
			return
		}
		s.Reset(ctx, ev.ChainID)
	}
}

// Reset is the chain-changed path: everything bound to the old chain is
// dropped and the user has to connect again.
func (s *Session) Reset(ctx context.Context, observed *big.Int) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	st := s.State()
	if st.Account != nil && observed != nil && !s.network.Matches(observed) {
		s.setState(ctx, domain.ConnectionState{
			Status:  domain.StatusWrongNetwork,
			Account: st.Account,
			ChainID: observed,
		})
	}

	s.clear()
	s.unsubscribe()
	s.setState(ctx, domain.ConnectionState{Status: domain.StatusDisconnected, ChainID: observed})
	s.publish(ctx, EventReset, "chain changed")
	s.logger.WarnContext(ctx, "chain changed, session reset", slog.Any("chain_id", observed))
}

func (s *Session) setState(ctx context.Context, st domain.ConnectionState) {
	st.UpdatedAt = s.now()
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.publish(ctx, EventState, "")
}

func (s *Session) publish(ctx context.Context, typ, reason string) {
	ev := domain.SessionEvent{Type: typ, State: s.State(), Reason: reason}

	if s.bus != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			err = s.bus.Publish(ctx, domain.ChannelSession, payload)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "publish session event", slog.String("error", err.Error()))
		}
	}
	if s.audit != nil {
		detail := map[string]any{"status": string(ev.State.Status)}
		if ev.State.Account != nil {
			detail["account"] = ev.State.Account.Hex()
		}
		if reason != "" {
			detail["reason"] = reason
		}
		if err := s.audit.Log(ctx, "session."+typ, detail); err != nil {
			s.logger.WarnContext(ctx, "audit session event", slog.String("error", err.Error()))
		}
	}
}

func copyState(st domain.ConnectionState) domain.ConnectionState {
	out := st
	if st.Account != nil {
		a := *st.Account
		out.Account = &a
	}
	if st.ChainID != nil {
		out.ChainID = new(big.Int).Set(st.ChainID)
	}
	return out
}
