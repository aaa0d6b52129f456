package models

// MConfig Structure
type MConfig struct {
	Name       string         `yaml:"name"`
	Host       string         `yaml:"host"`
	Port       int            `yaml:"port"`
	LogLevel   string         `yaml:"log_level"`
	Feed       MFeedConfig    `yaml:"feed"`
	Exchange   MExchangeConfig `yaml:"exchange"`
	Backend    MBackendConfig `yaml:"backend"`
	Storage    MStorageConfig `yaml:"storage"`
	Account    MAccountConfig `yaml:"account"`
	Timeframes []string       `yaml:"timeframes"`
}

type MFeedConfig struct {
	URL                     string   `yaml:"url"`
	DefaultSymbols          []string `yaml:"default_symbols"`
	ReconnectInitialSeconds int      `yaml:"reconnect_initial_seconds"`
	ReconnectMaxSeconds     int      `yaml:"reconnect_max_seconds"`
}

type MExchangeConfig struct {
	InfoURL        string `yaml:"info_url"`
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
}

type MBackendConfig struct {
	ConnectionString string `yaml:"connection_string"`
}

type MStorageConfig struct {
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type MAccountConfig struct {
	Address             string `yaml:"address"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	EquityHistorySize   int    `yaml:"equity_history_size"`
}
