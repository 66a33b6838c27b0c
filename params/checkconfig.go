package params

import (
	"net/url"

	"github.com/leasenet/ledgerclient/common"
	"github.com/leasenet/ledgerclient/types"
)

// CheckConfig check config
func (c *Config) CheckConfig() (err error) {
	if c.Servers == nil {
		return types.NewError(types.KindConfig, "must config 'Servers'")
	}
	if err = c.Servers.CheckConfig(); err != nil {
		return err
	}
	if c.Reconnect != nil {
		if err = c.Reconnect.CheckConfig(); err != nil {
			return err
		}
	}
	if c.Retry != nil {
		if err = c.Retry.CheckConfig(); err != nil {
			return err
		}
	}
	if c.Finality != nil && c.Finality.PollIntervalMillis < 0 {
		return types.NewError(types.KindConfig, "'Finality.PollIntervalMillis' must not be negative")
	}
	if c.Protocol == nil {
		return types.NewError(types.KindConfig, "must config 'Protocol'")
	}
	return c.Protocol.CheckConfig()
}

// CheckConfig check servers config
func (c *ServersConfig) CheckConfig() error {
	endpoints := c.Endpoints()
	if len(endpoints) == 0 {
		return types.NewError(types.KindConfig, "must config 'Servers.Primary' or 'Servers.Fallbacks'")
	}
	for _, endpoint := range endpoints {
		if endpoint == nil {
			return types.NewError(types.KindConfig, "empty server endpoint")
		}
		if err := endpoint.CheckConfig(); err != nil {
			return err
		}
	}
	return nil
}

// CheckConfig check server endpoint
func (s *ServerEndpoint) CheckConfig() error {
	if s.URL == "" {
		return types.NewError(types.KindConfig, "server endpoint must config 'URL'")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return types.WrapError(types.KindConfig, err, "server endpoint url "+s.URL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return types.NewError(types.KindConfig, "server endpoint %v must be a ws:// or wss:// url", s.URL)
	}
	if s.DialTimeoutSeconds < 0 || s.PingIntervalSeconds < 0 {
		return types.NewError(types.KindConfig, "server endpoint %v has negative timeouts", s.URL)
	}
	return nil
}

// CheckConfig check reconnect config
func (c *ReconnectConfig) CheckConfig() error {
	if c.DelayMillis < 0 {
		return types.NewError(types.KindConfig, "'Reconnect.DelayMillis' must not be negative")
	}
	if c.MaxConnectAttempts < 0 {
		return types.NewError(types.KindConfig, "'Reconnect.MaxConnectAttempts' must not be negative")
	}
	return nil
}

// CheckConfig check retry config
func (c *RetryConfig) CheckConfig() error {
	if c.MaxAttempts < 0 {
		return types.NewError(types.KindConfig, "'Retry.MaxAttempts' must not be negative")
	}
	if c.DelayMillis < 0 {
		return types.NewError(types.KindConfig, "'Retry.DelayMillis' must not be negative")
	}
	return nil
}

// CheckConfig check protocol config
func (c *ProtocolConfig) CheckConfig() error {
	if c.RegistryAddress == "" {
		return types.NewError(types.KindConfig, "must config 'Protocol.RegistryAddress'")
	}
	for _, addr := range []string{c.RegistryAddress, c.GovernorAddress, c.HeartbeatAddress, c.Issuer} {
		if addr == "" {
			continue
		}
		if _, err := types.DecodeAddress(addr); err != nil {
			return types.WrapError(types.KindConfig, err, "protocol address "+addr)
		}
	}
	if c.PageSize < 0 {
		return types.NewError(types.KindConfig, "'Protocol.PageSize' must not be negative")
	}
	if c.Namespace != "" && len(common.FromHex(c.Namespace)) != 32 {
		return types.NewError(types.KindConfig, "'Protocol.Namespace' must be 32 hex encoded bytes")
	}
	if c.OfferCacheSeconds < 0 {
		return types.NewError(types.KindConfig, "'Protocol.OfferCacheSeconds' must not be negative")
	}
	return nil
}
