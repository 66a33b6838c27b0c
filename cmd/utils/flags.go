package utils

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/leasenet/ledgerclient/log"
	"github.com/leasenet/ledgerclient/params"
)

var (
	// ConfigFileFlag --config
	ConfigFileFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Specify config file",
	}
	// ServerFlag --server
	ServerFlag = &cli.StringSliceFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "ledger server url, the first is the primary (overrides config)",
	}
	// RegistryFlag --registry
	RegistryFlag = &cli.StringFlag{
		Name:  "registry",
		Usage: "registry account address (overrides config)",
	}
	// LogFileFlag --log
	LogFileFlag = &cli.StringFlag{
		Name:  "log",
		Usage: "Specify log directory, rotated log files are written there",
	}
	// LogRotationFlag --log.rotate
	LogRotationFlag = &cli.Uint64Flag{
		Name:  "log.rotate",
		Usage: "log rotation time (unit hour)",
		Value: 24,
	}
	// LogMaxAgeFlag --log.maxage
	LogMaxAgeFlag = &cli.Uint64Flag{
		Name:  "log.maxage",
		Usage: "log max age (unit hour)",
		Value: 720,
	}
	// VerbosityFlag --verbosity
	VerbosityFlag = &cli.Uint64Flag{
		Name:    "verbosity",
		Aliases: []string{"v"},
		Usage:   "log verbosity (0:panic, 1:fatal, 2:error, 3:warn, 4:info, 5:debug, 6:trace)",
		Value:   4,
	}
	// JSONFormatFlag --json
	JSONFormatFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "output log in json format",
	}
	// ColorFormatFlag --color
	ColorFormatFlag = &cli.BoolFlag{
		Name:  "color",
		Usage: "output log in color text format",
		Value: true,
	}

	// CommonFlags are accepted by every command
	CommonFlags = []cli.Flag{
		ConfigFileFlag,
		ServerFlag,
		RegistryFlag,
		LogFileFlag,
		LogRotationFlag,
		LogMaxAgeFlag,
		VerbosityFlag,
		JSONFormatFlag,
		ColorFormatFlag,
	}
)

// SetLogger set log level, json format, color format, logfile
func SetLogger(ctx *cli.Context) {
	logLevel := ctx.Uint64(VerbosityFlag.Name)
	jsonFormat := ctx.Bool(JSONFormatFlag.Name)
	colorFormat := ctx.Bool(ColorFormatFlag.Name)
	log.SetLogger(uint32(logLevel), jsonFormat, colorFormat)

	logDir := ctx.String(LogFileFlag.Name)
	if logDir == "" {
		return
	}
	rotation := time.Duration(ctx.Uint64(LogRotationFlag.Name)) * time.Hour
	maxAge := time.Duration(ctx.Uint64(LogMaxAgeFlag.Name)) * time.Hour
	if err := log.SetLogFile(logDir, rotation, maxAge); err != nil {
		log.Fatal("set log file failed", "dir", logDir, "err", err)
	}
}

// GetConfigFilePath specified by `-c|--config`
func GetConfigFilePath(ctx *cli.Context) string {
	return ctx.String(ConfigFileFlag.Name)
}

// LoadConfig loads the config file, or builds one from the command line
// when no file is given. Command line servers and registry override the file.
func LoadConfig(ctx *cli.Context) (*params.Config, error) {
	var (
		config *params.Config
		err    error
	)
	if configFile := GetConfigFilePath(ctx); configFile != "" {
		if config, err = params.LoadConfig(configFile); err != nil {
			return nil, err
		}
	} else {
		config = params.DefaultConfig()
	}
	if servers := ctx.StringSlice(ServerFlag.Name); len(servers) > 0 {
		config.Servers = &params.ServersConfig{Primary: &params.ServerEndpoint{URL: servers[0]}}
		for _, url := range servers[1:] {
			config.Servers.Fallbacks = append(config.Servers.Fallbacks, &params.ServerEndpoint{URL: url})
		}
	}
	if registry := ctx.String(RegistryFlag.Name); registry != "" {
		config.Protocol.RegistryAddress = registry
	}
	config.SetDefaults()
	if err = config.CheckConfig(); err != nil {
		return nil, err
	}
	return config, nil
}
