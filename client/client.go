// Package client wires the connection manager, gateway, submit engine,
// event pipeline and state reader of one ledger client instance.
package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/leasenet/ledgerclient/connection"
	"github.com/leasenet/ledgerclient/gateway"
	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/params"
	"github.com/leasenet/ledgerclient/protocol"
	"github.com/leasenet/ledgerclient/state"
	"github.com/leasenet/ledgerclient/submit"
	"github.com/leasenet/ledgerclient/subscription"
	"github.com/leasenet/ledgerclient/types"
)

var logger = log.New("client")

// Options carries the collaborators a Client does not build itself.
type Options struct {
	// Signer signs single-signer submissions. Optional.
	Signer types.Signer
	// Decryptor decrypts lease payloads addressed to this client. Optional.
	Decryptor types.Decryptor
	// Dialer opens server sessions, websockets by default.
	Dialer connection.Dialer
}

// Client is one ledger client instance. Nothing is shared between clients.
type Client struct {
	config   *params.Config
	conn     *connection.Manager
	gw       *gateway.Gateway
	engine   *submit.Engine
	state    *state.Reader
	decoder  *protocol.Decoder
	offers   *subscription.OfferResolver
	pipeline *subscription.Pipeline
}

// New builds a client from a checked config. Nothing connects until Connect.
func New(config *params.Config, opts Options) (*Client, error) {
	if config == nil {
		return nil, types.NewError(types.KindConfig, "nil config")
	}
	config.SetDefaults()
	if err := config.CheckConfig(); err != nil {
		return nil, err
	}
	conn, err := connection.NewManager(config.Servers, config.Reconnect, opts.Dialer)
	if err != nil {
		return nil, err
	}
	proto := config.Protocol
	c := &Client{config: config, conn: conn}
	c.gw = gateway.New(conn, proto.PageSize)
	c.engine = submit.NewEngine(c.gw, conn, opts.Signer, config.Finality, config.Retry)
	c.state = state.NewReader(c.gw, proto.RegistryAddress, proto.Namespace, conn)
	c.decoder = protocol.NewDecoder(protocol.Options{
		Currency:      proto.Currency,
		Issuer:        proto.Issuer,
		RewardSources: rewardSources(proto),
		Hosts:         c.state,
		Decryptor:     opts.Decryptor,
	})
	c.offers = subscription.NewOfferResolver(c.gw, proto.OfferCacheTTL())
	c.pipeline = subscription.NewPipeline(conn, c.decoder, c.offers)
	c.pipeline.Attach(conn.Events())
	return c, nil
}

func rewardSources(proto *params.ProtocolConfig) []string {
	var sources []string
	for _, addr := range []string{proto.RegistryAddress, proto.HeartbeatAddress, proto.GovernorAddress} {
		if addr != "" {
			sources = append(sources, addr)
		}
	}
	return sources
}

// Connect connects to the primary server or, failing that, a fallback.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Close disconnects for good and releases the caches.
func (c *Client) Close() error {
	c.conn.Disconnect()
	var errs []error
	if err := c.offers.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.state.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		logger.Warn("close client", "errs", errs)
		return errors.Wrap(errs[0], "close client")
	}
	return nil
}

// Config returns the config the client was built from.
func (c *Client) Config() *params.Config { return c.config }

// Connection returns the connection manager.
func (c *Client) Connection() *connection.Manager { return c.conn }

// Gateway returns the request gateway.
func (c *Client) Gateway() *gateway.Gateway { return c.gw }

// Engine returns the submit engine.
func (c *Client) Engine() *submit.Engine { return c.engine }

// State returns the registry state reader.
func (c *Client) State() *state.Reader { return c.state }

// Decoder returns the event decoder.
func (c *Client) Decoder() *protocol.Decoder { return c.decoder }

// Pipeline returns the event pipeline.
func (c *Client) Pipeline() *subscription.Pipeline { return c.pipeline }

// Subscribe delivers the events addressed to address to h.
func (c *Client) Subscribe(ctx context.Context, address string, h *subscription.Handler) error {
	return c.pipeline.Subscribe(ctx, address, h)
}

// Unsubscribe removes the (address, h) subscription.
func (c *Client) Unsubscribe(ctx context.Context, address string, h *subscription.Handler) error {
	return c.pipeline.Unsubscribe(ctx, address, h)
}

// Submit prepares tx and submits it under the configured retry policy.
func (c *Client) Submit(ctx context.Context, tx *types.Transaction) (*types.TransactionOutcome, error) {
	return c.engine.SubmitWithRetry(ctx, tx)
}

// SubmitMultisigned combines independently signed copies of one
// transaction and submits the result.
func (c *Client) SubmitMultisigned(ctx context.Context, copies []*types.Transaction) (*types.TransactionOutcome, error) {
	tx, err := submit.CombineMultisigned(copies)
	if err != nil {
		return nil, err
	}
	return c.engine.SubmitMultisigned(ctx, tx)
}

// CurrentEpoch returns the protocol epoch of the last closed ledger.
func (c *Client) CurrentEpoch(ctx context.Context) (uint64, error) {
	return c.state.CurrentEpoch(ctx)
}
