// Package evm binds the engine's contract interfaces to live contracts over
// JSON-RPC. Every write is its own transaction and is awaited before the call
// returns; there is no rollback across transactions.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"YieldRouter/internal/model"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

var errUnexpectedOutput = errors.New("unexpected call output")

// Backend is the RPC surface the adapters need. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Client signs and sends transactions from one account.
type Client struct {
	backend Backend
	auth    *bind.TransactOpts
	from    common.Address
	timeout time.Duration
	log     zerolog.Logger
}

// Dial connects to rpcURL and loads the signing key. A zero chainID is
// fetched from the node.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, chainID int64, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	id := big.NewInt(chainID)
	if chainID == 0 {
		if id, err = ec.ChainID(ctx); err != nil {
			ec.Close()
			return nil, fmt.Errorf("fetch chain id: %w", err)
		}
	}
	return NewClient(ec, key, id, timeout, log)
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("keyed transactor: %w", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	c := &Client{
		backend: backend,
		auth:    auth,
		from:    from,
		timeout: timeout,
		log:     log.With().Str("module", "evm").Str("account", from.Hex()).Logger(),
	}
	c.log.Info().Str("chain_id", chainID.String()).Msg("EVM client ready")
	return c, nil
}

// Close releases the RPC connection when the backend holds one.
func (c *Client) Close() {
	if cl, ok := c.backend.(interface{ Close() }); ok {
		cl.Close()
	}
}

// From is the account every transaction is sent from.
func (c *Client) From() common.Address { return c.from }

func (c *Client) bound(addr common.Address, parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(addr, parsed, c.backend, c.backend, c.backend)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) call(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) ([]interface{}, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx, From: c.from}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w: %w", method, model.ErrExternalCallFailed, err)
	}
	return out, nil
}

func (c *Client) callBig(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, contract, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: %w", method, errUnexpectedOutput)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("call %s: %w: %T", method, errUnexpectedOutput, out[0])
	}
	return v, nil
}

func (c *Client) callAddress(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) (common.Address, error) {
	out, err := c.call(ctx, contract, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) == 0 {
		return common.Address{}, fmt.Errorf("call %s: %w", method, errUnexpectedOutput)
	}
	v, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("call %s: %w: %T", method, errUnexpectedOutput, out[0])
	}
	return v, nil
}

// transact sends method and waits for it to be mined. A reverted receipt is
// reported as ErrExternalCallFailed.
func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...interface{}) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	opts := *c.auth
	opts.Context = ctx
	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return fmt.Errorf("send %s: %w: %w", method, model.ErrExternalCallFailed, err)
	}
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return fmt.Errorf("wait %s %s: %w: %w", method, tx.Hash().Hex(), model.ErrExternalCallFailed, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%s %s reverted: %w", method, tx.Hash().Hex(), model.ErrExternalCallFailed)
	}
	c.log.Debug().Str("method", method).Str("tx", tx.Hash().Hex()).Uint64("gas_used", receipt.GasUsed).Msg("Transaction mined")
	return nil
}
