package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "smartsync.cfg.json"

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// LoadDefaults applies default values only, for runs without a config file.
func LoadDefaults() {
	setDefaults()
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./smartsynclogs")

	viper.SetDefault("game.assets", []map[string]any{})
	viper.SetDefault("game.placementCount", 20)
	viper.SetDefault("game.seed", 0)
	viper.SetDefault("game.spawnIdBase", 0)
	viper.SetDefault("game.grid.rows", 6)
	viper.SetDefault("game.grid.cols", 6)
	viper.SetDefault("game.grid.step", 2.0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "smartsync")

	viper.SetDefault("room.url", "ws://localhost:7350/rooms")
	viper.SetDefault("room.name", "lobby")
	viper.SetDefault("room.participant", "")
	viper.SetDefault("room.bufferSize", 256)
	viper.SetDefault("room.reconnectDelay", "2s")
	viper.SetDefault("room.ackTimeout", "5s")

	viper.SetDefault("relay.address", ":7350")
	viper.SetDefault("relay.path", "/rooms")
	viper.SetDefault("relay.maxMessageSize", 1<<20)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "smartsync-metrics")
	viper.SetDefault("influx.bucket", "smartsync")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "smartsync")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "10s")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GridConfig lays out the placeholder points obstacles are placed on.
type GridConfig struct {
	Rows int     `json:"rows" mapstructure:"rows"`
	Cols int     `json:"cols" mapstructure:"cols"`
	Step float32 `json:"step" mapstructure:"step"`
}

// GameConfig holds the minigame settings.
type GameConfig struct {
	Assets         GameAssets
	PlacementCount int
	Seed           int64
	SpawnIDBase    int32
	Grid           GridConfig
}

// GetGameConfig returns the game settings. Invalid asset entries are an error.
func GetGameConfig() (GameConfig, error) {
	var entries []AssetEntry
	if err := viper.UnmarshalKey("game.assets", &entries); err != nil {
		return GameConfig{}, fmt.Errorf("read game.assets: %w", err)
	}
	assets, err := ParseAssets(entries)
	if err != nil {
		return GameConfig{}, err
	}
	return GameConfig{
		Assets:         assets,
		PlacementCount: viper.GetInt("game.placementCount"),
		Seed:           viper.GetInt64("game.seed"),
		SpawnIDBase:    viper.GetInt32("game.spawnIdBase"),
		Grid: GridConfig{
			Rows: viper.GetInt("game.grid.rows"),
			Cols: viper.GetInt("game.grid.cols"),
			Step: float32(viper.GetFloat64("game.grid.step")),
		},
	}, nil
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpPath     string
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageConfig selects and configures the entity store.
type StorageConfig struct {
	Type     string
	SQLite   SQLiteConfig
	Postgres PostgresConfig
}

// GetStorageConfig returns the entity store settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// RoomConfig holds the websocket room client settings.
type RoomConfig struct {
	URL            string
	Name           string
	Participant    string
	BufferSize     int
	ReconnectDelay time.Duration
	AckTimeout     time.Duration
}

// GetRoomConfig returns the room client settings.
func GetRoomConfig() RoomConfig {
	return RoomConfig{
		URL:            viper.GetString("room.url"),
		Name:           viper.GetString("room.name"),
		Participant:    viper.GetString("room.participant"),
		BufferSize:     viper.GetInt("room.bufferSize"),
		ReconnectDelay: viper.GetDuration("room.reconnectDelay"),
		AckTimeout:     viper.GetDuration("room.ackTimeout"),
	}
}

// RelayConfig holds the relay server settings.
type RelayConfig struct {
	Address        string
	Path           string
	MaxMessageSize int64
}

// GetRelayConfig returns the relay server settings.
func GetRelayConfig() RelayConfig {
	return RelayConfig{
		Address:        viper.GetString("relay.address"),
		Path:           viper.GetString("relay.path"),
		MaxMessageSize: viper.GetInt64("relay.maxMessageSize"),
	}
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// URL returns the InfluxDB server URL.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GraylogConfig holds Graylog GELF settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// GetGraylogConfig returns the Graylog settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// MonitorConfig holds status reporting settings.
type MonitorConfig struct {
	Interval time.Duration
}

// GetMonitorConfig returns the status reporting settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{Interval: viper.GetDuration("monitor.interval")}
}
