package config

import (
	"time"
)

// Validation tags described here: https://pkg.go.dev/github.com/go-playground/validator/v10
type Config struct {
	NiceHash struct {
		APIBaseURL string `env:"NICEHASH_API_BASE_URL" flag:"nicehash-api-base-url" validate:"omitempty,url" desc:"base url of the nicehash public api"`
		Wallet     string `env:"NICEHASH_WALLET"       flag:"nicehash-wallet"       validate:"required"      desc:"bitcoin wallet address mining revenue is paid to"`
		Workername string `env:"NICEHASH_WORKERNAME"   flag:"nicehash-workername"   validate:"omitempty,alphanum"`
		Region     string `env:"NICEHASH_REGION"       flag:"nicehash-region"       validate:"omitempty,oneof=eu usa hk jp in br"`
	}
	Switching struct {
		Interval  time.Duration `env:"SWITCHING_INTERVAL"  flag:"switching-interval"  validate:"omitempty" desc:"how often profitability is re-evaluated and devices are reassigned"`
		Threshold float64       `env:"SWITCHING_THRESHOLD" flag:"switching-threshold" validate:"omitempty" desc:"relative profitability gain required before switching a device away from its current algorithm"`
	}
	Status struct {
		Interval time.Duration `env:"STATUS_INTERVAL" flag:"status-interval" validate:"omitempty" desc:"how often miner liveness and speeds are polled"`
	}
	Balance struct {
		Interval time.Duration `env:"BALANCE_INTERVAL" flag:"balance-interval" validate:"omitempty" desc:"how often the wallet balance is requested"`
	}
	Miner struct {
		ExcavatorPath    string `env:"MINER_EXCAVATOR_PATH"     flag:"miner-excavator-path"     validate:"omitempty,file" desc:"path to the excavator binary"`
		ExcavatorAPIHost string `env:"MINER_EXCAVATOR_API_HOST" flag:"miner-excavator-api-host" validate:"omitempty,ip"`
		ExcavatorAPIPort int    `env:"MINER_EXCAVATOR_API_PORT" flag:"miner-excavator-api-port" validate:"omitempty,number"`
	}
	Devices struct {
		EnableCPU bool `env:"DEVICES_ENABLE_CPU" flag:"devices-enable-cpu" desc:"also mine on the host cpu"`
	}
	Benchmarks struct {
		FilePath string `env:"BENCHMARKS_FILE_PATH" flag:"benchmarks-file-path" validate:"omitempty" desc:"path to the benchmarks json file"`
	}
	Log struct {
		Color          bool   `env:"LOG_COLOR"           flag:"log-color"`
		FilePath       string `env:"LOG_FILE_PATH"       flag:"log-file-path"       validate:"omitempty" desc:"enables file logging"`
		IsProd         bool   `env:"LOG_IS_PROD"         flag:"log-is-prod"         validate:""          desc:"affects the format of the log output"`
		JSON           bool   `env:"LOG_JSON"            flag:"log-json"`
		LevelApp       string `env:"LOG_LEVEL_APP"       flag:"log-level-app"       validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelScheduler string `env:"LOG_LEVEL_SCHEDULER" flag:"log-level-scheduler" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelMiner     string `env:"LOG_LEVEL_MINER"     flag:"log-level-miner"     validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	}
	Web struct {
		Address string `env:"WEB_ADDRESS" flag:"web-address" validate:"omitempty,hostname_port" desc:"http server address host:port"`
	}
}

func (cfg *Config) SetDefaults() {
	// NiceHash
	if cfg.NiceHash.APIBaseURL == "" {
		cfg.NiceHash.APIBaseURL = "https://api.nicehash.com"
	}
	if cfg.NiceHash.Workername == "" {
		cfg.NiceHash.Workername = "nuxhash"
	}
	if cfg.NiceHash.Region == "" {
		cfg.NiceHash.Region = "eu"
	}

	// Switching
	if cfg.Switching.Interval == 0 {
		cfg.Switching.Interval = 60 * time.Second
	}
	if cfg.Switching.Threshold == 0 {
		cfg.Switching.Threshold = 0.02
	}

	// Status
	if cfg.Status.Interval == 0 {
		cfg.Status.Interval = 5 * time.Second
	}

	// Balance
	if cfg.Balance.Interval == 0 {
		cfg.Balance.Interval = 5 * time.Minute
	}

	// Miner
	if cfg.Miner.ExcavatorPath == "" {
		cfg.Miner.ExcavatorPath = "excavator"
	}
	if cfg.Miner.ExcavatorAPIHost == "" {
		cfg.Miner.ExcavatorAPIHost = "127.0.0.1"
	}
	if cfg.Miner.ExcavatorAPIPort == 0 {
		cfg.Miner.ExcavatorAPIPort = 3456
	}

	// Benchmarks
	if cfg.Benchmarks.FilePath == "" {
		cfg.Benchmarks.FilePath = "benchmarks.json"
	}

	// Log
	if cfg.Log.LevelApp == "" {
		cfg.Log.LevelApp = "debug"
	}
	if cfg.Log.LevelScheduler == "" {
		cfg.Log.LevelScheduler = "info"
	}
	if cfg.Log.LevelMiner == "" {
		cfg.Log.LevelMiner = "info"
	}

	// Web
	if cfg.Web.Address == "" {
		cfg.Web.Address = "127.0.0.1:8082"
	}
}

// GetSanitized returns a copy of the config with sensitive data removed
// explicitly adding each field here to avoid accidentally leaking sensitive data
func (cfg *Config) GetSanitized() interface{} {
	publicCfg := Config{}

	publicCfg.NiceHash.APIBaseURL = cfg.NiceHash.APIBaseURL
	publicCfg.NiceHash.Workername = cfg.NiceHash.Workername
	publicCfg.NiceHash.Region = cfg.NiceHash.Region

	publicCfg.Switching.Interval = cfg.Switching.Interval
	publicCfg.Switching.Threshold = cfg.Switching.Threshold

	publicCfg.Status.Interval = cfg.Status.Interval
	publicCfg.Balance.Interval = cfg.Balance.Interval

	publicCfg.Miner.ExcavatorPath = cfg.Miner.ExcavatorPath
	publicCfg.Miner.ExcavatorAPIHost = cfg.Miner.ExcavatorAPIHost
	publicCfg.Miner.ExcavatorAPIPort = cfg.Miner.ExcavatorAPIPort

	publicCfg.Devices.EnableCPU = cfg.Devices.EnableCPU
	publicCfg.Benchmarks.FilePath = cfg.Benchmarks.FilePath

	publicCfg.Log.Color = cfg.Log.Color
	publicCfg.Log.FilePath = cfg.Log.FilePath
	publicCfg.Log.IsProd = cfg.Log.IsProd
	publicCfg.Log.JSON = cfg.Log.JSON
	publicCfg.Log.LevelApp = cfg.Log.LevelApp
	publicCfg.Log.LevelScheduler = cfg.Log.LevelScheduler
	publicCfg.Log.LevelMiner = cfg.Log.LevelMiner

	publicCfg.Web.Address = cfg.Web.Address

	return publicCfg
}
