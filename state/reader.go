package state

import (
	"context"
	"sync"
	"time"

	"github.com/ReneKroon/ttlcache/v2"

	"github.com/leasenet/ledgerclient/codec"
	"github.com/leasenet/ledgerclient/common"
	"github.com/leasenet/ledgerclient/gateway"
	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/types"
)

var logger = log.New("state")

const (
	hostCacheTTL     = 30 * time.Second
	hostCacheSize    = 4096
	hostCheckTimeout = 10 * time.Second
)

// Source reads hook state entries.
type Source interface {
	HookState(ctx context.Context, address, key, namespace string) (string, error)
	AccountNamespace(ctx context.Context, address, namespace string) ([]*gateway.NamespaceEntry, error)
}

// Ledger tells the last closed ledger index.
type Ledger interface {
	LedgerIndex() uint32
}

// Reader reads the protocol state of one registry account. The config is
// read on first use and cached until Refresh.
type Reader struct {
	src       Source
	registry  string
	namespace string
	ledger    Ledger

	mu     sync.Mutex
	config *ProtocolConfig

	hosts *ttlcache.Cache
}

// NewReader returns a reader of the registry state in namespace.
func NewReader(src Source, registry, namespace string, ledger Ledger) *Reader {
	r := &Reader{src: src, registry: registry, namespace: namespace, ledger: ledger, hosts: ttlcache.NewCache()}
	r.hosts.SetLoaderFunction(func(address string) (interface{}, time.Duration, error) {
		ctx, cancel := context.WithTimeout(context.Background(), hostCheckTimeout)
		defer cancel()
		_, err := r.Host(ctx, address)
		switch {
		case err == nil:
			return true, ttlcache.ItemExpireWithGlobalTTL, nil
		case types.IsNotFound(err):
			return false, ttlcache.ItemExpireWithGlobalTTL, nil
		default:
			return nil, 0, err
		}
	})
	r.hosts.SetCacheSizeLimit(hostCacheSize)
	if err := r.hosts.SetTTL(hostCacheTTL); err != nil {
		logger.Error("set host cache ttl failed", err)
	}
	return r
}

// Close stops the host cache janitor.
func (r *Reader) Close() error {
	return r.hosts.Close()
}

// Config returns the cached config, reading it on first use.
func (r *Reader) Config(ctx context.Context) (*ProtocolConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.config != nil {
		return r.config, nil
	}
	return r.refresh(ctx)
}

// Refresh re-reads the config from the ledger.
func (r *Reader) Refresh(ctx context.Context) (*ProtocolConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refresh(ctx)
}

func (r *Reader) refresh(ctx context.Context) (*ProtocolConfig, error) {
	config := &ProtocolConfig{}
	for _, key := range Catalogue {
		v, err := r.read(ctx, key)
		if err != nil {
			return nil, err
		}
		config.set(key.Name, v)
	}
	r.config = config
	logger.Debug("protocol config read", "registry", r.registry, "epochSize", config.EpochSize,
		"epochBase", config.EpochBaseIndex, "hosts", config.HostCount)
	return config, nil
}

func (r *Reader) read(ctx context.Context, key ConfigKey) (value, error) {
	data, err := r.src.HookState(ctx, r.registry, codec.StateKeyHex(key.Name), r.namespace)
	if types.IsNotFound(err) {
		return defaultValue(key)
	}
	if err != nil {
		return value{}, err
	}
	v, err := decodeValue(key.Layout, common.FromHex(data))
	if err != nil {
		return value{}, types.WrapError(types.KindMalformedLayout, err, "config key "+key.Name)
	}
	return v, nil
}

// Host reads the directory entry of address. A missing host is NotFound.
func (r *Reader) Host(ctx context.Context, address string) (*codec.HostEntry, error) {
	key, err := codec.HostKey(address)
	if err != nil {
		return nil, types.WrapError(types.KindConfig, err, "host address "+address)
	}
	data, err := r.src.HookState(ctx, r.registry, common.ToHex(key), r.namespace)
	if err != nil {
		return nil, err
	}
	return codec.DecodeHostEntry(key, common.FromHex(data))
}

// IsHost reports whether address has a directory entry. Answers are
// cached briefly since reward detection asks for every payment.
func (r *Reader) IsHost(ctx context.Context, address string) (bool, error) {
	if _, err := types.DecodeAddress(address); err != nil {
		return false, nil
	}
	v, err := r.hosts.Get(address)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Hosts lists the host directory.
func (r *Reader) Hosts(ctx context.Context) ([]*codec.HostEntry, error) {
	entries, err := r.src.AccountNamespace(ctx, r.registry, r.namespace)
	if err != nil {
		return nil, err
	}
	var hosts []*codec.HostEntry
	for _, entry := range entries {
		key := common.FromHex(entry.Key)
		if !codec.IsHostKey(key) {
			continue
		}
		host, err := codec.DecodeHostEntry(key, common.FromHex(entry.Data))
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// Epoch returns the epoch of ledgerIndex. Ledgers before the epoch base
// belong to epoch 0.
func (r *Reader) Epoch(ctx context.Context, ledgerIndex uint32) (uint64, error) {
	config, err := r.Config(ctx)
	if err != nil {
		return 0, err
	}
	return config.Epoch(ledgerIndex)
}

// EpochStartIndex returns the first ledger index of epoch.
func (r *Reader) EpochStartIndex(ctx context.Context, epoch uint64) (uint64, error) {
	config, err := r.Config(ctx)
	if err != nil {
		return 0, err
	}
	return config.EpochStartIndex(epoch)
}

// CurrentEpoch returns the epoch of the last closed ledger.
func (r *Reader) CurrentEpoch(ctx context.Context) (uint64, error) {
	if r.ledger == nil || r.ledger.LedgerIndex() == 0 {
		return 0, types.NewError(types.KindTransport, "no ledger observed yet")
	}
	return r.Epoch(ctx, r.ledger.LedgerIndex())
}

// Epoch returns floor((ledgerIndex - EpochBaseIndex) / EpochSize).
func (c *ProtocolConfig) Epoch(ledgerIndex uint32) (uint64, error) {
	if c.EpochSize == 0 {
		return 0, types.NewError(types.KindMalformedLayout, "epoch size is zero")
	}
	if uint64(ledgerIndex) < c.EpochBaseIndex {
		return 0, nil
	}
	return (uint64(ledgerIndex) - c.EpochBaseIndex) / uint64(c.EpochSize), nil
}

// EpochStartIndex returns EpochBaseIndex + epoch * EpochSize.
func (c *ProtocolConfig) EpochStartIndex(epoch uint64) (uint64, error) {
	if c.EpochSize == 0 {
		return 0, types.NewError(types.KindMalformedLayout, "epoch size is zero")
	}
	return c.EpochBaseIndex + epoch*uint64(c.EpochSize), nil
}
