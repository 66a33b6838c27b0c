package params

import (
	"encoding/json"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/leasenet/ledgerclient/common"
	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/types"
)

// defaults
const (
	DefaultReconnectDelayMillis = 2000
	DefaultMaxConnectAttempts   = 3
	DefaultDialTimeoutSeconds   = 10
	DefaultPingIntervalSeconds  = 30
	DefaultPollIntervalMillis   = 1000
	DefaultRetryAttempts        = 1
	DefaultRetryDelayMillis     = 1000
	DefaultLedgerOffset         = 10
	DefaultFeeIncrement         = 10
	DefaultPageSize             = 400
	DefaultCurrency             = "EVR"
	DefaultNamespace            = "01EAF09326B4911554384121FF56FA8FECC215FDDE2EC35D9E59F2C53EC665A0"
	DefaultOfferCacheSeconds    = 60
	DefaultLogLevel             = 3
)

// Config config items (decode from toml file)
type Config struct {
	Servers   *ServersConfig
	Reconnect *ReconnectConfig `toml:",omitempty" json:",omitempty"`
	Finality  *FinalityConfig  `toml:",omitempty" json:",omitempty"`
	Retry     *RetryConfig     `toml:",omitempty" json:",omitempty"`
	Protocol  *ProtocolConfig
	Log       *LogConfig `toml:",omitempty" json:",omitempty"`
}

// ServerEndpoint a ledger server url and its connection options
type ServerEndpoint struct {
	URL                 string
	DialTimeoutSeconds  int `toml:",omitempty" json:",omitempty"`
	PingIntervalSeconds int `toml:",omitempty" json:",omitempty"`
}

// ServersConfig the primary server and the ordered fallback list
type ServersConfig struct {
	Primary   *ServerEndpoint   `toml:",omitempty" json:",omitempty"`
	Fallbacks []*ServerEndpoint `toml:",omitempty" json:",omitempty"`
}

// ReconnectConfig reconnect policy
type ReconnectConfig struct {
	// backoff is attempt * DelayMillis
	DelayMillis int
	// attempts per server on the initial connect; auto reconnect is unbounded
	MaxConnectAttempts int
}

// FinalityConfig finality wait policy
type FinalityConfig struct {
	PollIntervalMillis int
}

// RetryConfig resubmission policy
type RetryConfig struct {
	MaxAttempts  int
	DelayMillis  int
	FeeIncrement uint64 // drops added per expired attempt
	LedgerOffset uint32 // LastLedgerSequence = current ledger + LedgerOffset
}

// ProtocolConfig protocol accounts and currency
type ProtocolConfig struct {
	RegistryAddress  string
	GovernorAddress  string `toml:",omitempty" json:",omitempty"`
	HeartbeatAddress string `toml:",omitempty" json:",omitempty"`
	Currency         string
	Issuer           string
	PageSize         int    `toml:",omitempty" json:",omitempty"`
	Namespace        string `toml:",omitempty" json:",omitempty"` // hook state namespace of the registry
	// seconds an offer listing is reused when routing offer accepts
	OfferCacheSeconds int `toml:",omitempty" json:",omitempty"`
}

// LogConfig log options
type LogConfig struct {
	Verbosity     uint32
	JSONFormat    bool
	Color         bool
	LogDir        string `toml:",omitempty" json:",omitempty"`
	RotationHours int    `toml:",omitempty" json:",omitempty"`
	MaxAgeHours   int    `toml:",omitempty" json:",omitempty"`
}

// DefaultConfig returns a config with every optional item defaulted
func DefaultConfig() *Config {
	c := &Config{Servers: &ServersConfig{}, Protocol: &ProtocolConfig{}}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset optional items
func (c *Config) SetDefaults() {
	if c.Servers == nil {
		c.Servers = &ServersConfig{}
	}
	for _, s := range c.Servers.Endpoints() {
		s.setDefaults()
	}
	if c.Reconnect == nil {
		c.Reconnect = &ReconnectConfig{}
	}
	if c.Reconnect.DelayMillis == 0 {
		c.Reconnect.DelayMillis = DefaultReconnectDelayMillis
	}
	if c.Reconnect.MaxConnectAttempts == 0 {
		c.Reconnect.MaxConnectAttempts = DefaultMaxConnectAttempts
	}
	if c.Finality == nil {
		c.Finality = &FinalityConfig{}
	}
	if c.Finality.PollIntervalMillis == 0 {
		c.Finality.PollIntervalMillis = DefaultPollIntervalMillis
	}
	if c.Retry == nil {
		c.Retry = &RetryConfig{}
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultRetryAttempts
	}
	if c.Retry.DelayMillis == 0 {
		c.Retry.DelayMillis = DefaultRetryDelayMillis
	}
	if c.Retry.FeeIncrement == 0 {
		c.Retry.FeeIncrement = DefaultFeeIncrement
	}
	if c.Retry.LedgerOffset == 0 {
		c.Retry.LedgerOffset = DefaultLedgerOffset
	}
	if c.Protocol == nil {
		c.Protocol = &ProtocolConfig{}
	}
	if c.Protocol.Currency == "" {
		c.Protocol.Currency = DefaultCurrency
	}
	if c.Protocol.PageSize == 0 {
		c.Protocol.PageSize = DefaultPageSize
	}
	if c.Protocol.Namespace == "" {
		c.Protocol.Namespace = DefaultNamespace
	}
	if c.Protocol.OfferCacheSeconds == 0 {
		c.Protocol.OfferCacheSeconds = DefaultOfferCacheSeconds
	}
	if c.Log == nil {
		c.Log = &LogConfig{Verbosity: DefaultLogLevel}
	}
}

func (s *ServerEndpoint) setDefaults() {
	if s.DialTimeoutSeconds == 0 {
		s.DialTimeoutSeconds = DefaultDialTimeoutSeconds
	}
	if s.PingIntervalSeconds == 0 {
		s.PingIntervalSeconds = DefaultPingIntervalSeconds
	}
}

// Endpoints returns the primary (if any) followed by the fallbacks
func (c *ServersConfig) Endpoints() []*ServerEndpoint {
	var all []*ServerEndpoint
	if c.Primary != nil {
		all = append(all, c.Primary)
	}
	return append(all, c.Fallbacks...)
}

// DialTimeout dial timeout
func (s *ServerEndpoint) DialTimeout() time.Duration {
	return time.Duration(s.DialTimeoutSeconds) * time.Second
}

// PingInterval keepalive ping interval
func (s *ServerEndpoint) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalSeconds) * time.Second
}

// Delay reconnect backoff unit
func (c *ReconnectConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// PollInterval finality poll interval
func (c *FinalityConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// Delay wait between attempts
func (c *RetryConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// OfferCacheTTL offer listing cache lifetime
func (c *ProtocolConfig) OfferCacheTTL() time.Duration {
	return time.Duration(c.OfferCacheSeconds) * time.Second
}

// LoadConfig load config file, apply defaults and check it
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		return nil, types.NewError(types.KindConfig, "no config file specified")
	}
	log.Println("Config file is", configFile)
	if !common.FileExist(configFile) {
		return nil, types.NewError(types.KindConfig, "config file %v not exist", configFile)
	}
	config := &Config{}
	if _, err := toml.DecodeFile(configFile, config); err != nil {
		return nil, types.WrapError(types.KindConfig, err, "toml DecodeFile")
	}
	config.SetDefaults()

	var bs []byte
	if log.JSONFormat {
		bs, _ = json.Marshal(config)
	} else {
		bs, _ = json.MarshalIndent(config, "", "  ")
	}
	log.Println("LoadConfig finished.", string(bs))
	if err := config.CheckConfig(); err != nil {
		return nil, err
	}
	log.Info("Check config success", "configFile", configFile)
	return config, nil
}

// DecodeConfig decode config from toml text, apply defaults and check it
func DecodeConfig(text string) (*Config, error) {
	config := &Config{}
	if _, err := toml.Decode(text, config); err != nil {
		return nil, types.WrapError(types.KindConfig, err, "toml Decode")
	}
	config.SetDefaults()
	if err := config.CheckConfig(); err != nil {
		return nil, err
	}
	return config, nil
}
