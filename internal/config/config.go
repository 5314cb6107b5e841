package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	StorageSQLite = "sqlite"
	StorageBadger = "badger"
	StorageMemory = "memory"
)

type Config struct {
	LogLevel string `env:"CALLCHAT_LOG_LEVEL,default=info"`
	LogFile  string `env:"CALLCHAT_LOG_FILE"`

	Storage      string `env:"CALLCHAT_STORAGE,default=sqlite" validate:"oneof=sqlite badger memory"`
	DatabasePath string `env:"CALLCHAT_DATABASE_PATH"`
	BadgerPath   string `env:"CALLCHAT_BADGER_PATH"`

	RelayURL          string        `env:"CALLCHAT_RELAY_URL,default=ws://127.0.0.1:7070"`
	RelayListen       string        `env:"CALLCHAT_RELAY_LISTEN,default=127.0.0.1:7070"`
	CallID            string        `env:"CALLCHAT_CALL_ID"`
	UserID            string        `env:"CALLCHAT_USER_ID"`
	UserName          string        `env:"CALLCHAT_USER_NAME"`
	UserImage         string        `env:"CALLCHAT_USER_IMAGE"`
	HeartbeatInterval time.Duration `env:"CALLCHAT_HEARTBEAT_INTERVAL,default=0s"`

	GRPCAddress string `env:"CALLCHAT_GRPC_ADDRESS,default=127.0.0.1:50061"`
	MCPAddress  string `env:"CALLCHAT_MCP_ADDRESS,default=127.0.0.1:8090"`

	PiPEnabled     bool          `env:"CALLCHAT_PIP_ENABLED,default=true"`
	PiPAddress     string        `env:"CALLCHAT_PIP_ADDRESS,default=127.0.0.1:8091"`
	PiPOpenTimeout time.Duration `env:"CALLCHAT_PIP_OPEN_TIMEOUT,default=30s"`
	PiPStylesheets string        `env:"CALLCHAT_PIP_STYLESHEETS"`

	BadgeCap int `env:"CALLCHAT_BADGE_CAP,default=9" validate:"min=1"`

	DataDir string
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	homeDir, _ := os.UserHomeDir()
	cfg.DataDir = filepath.Join(homeDir, ".callchat")

	cfg.DatabasePath = lo.CoalesceOrEmpty(cfg.DatabasePath, filepath.Join(cfg.DataDir, "callchat.db"))
	cfg.BadgerPath = lo.CoalesceOrEmpty(cfg.BadgerPath, filepath.Join(cfg.DataDir, "badger"))
	cfg.LogFile = lo.CoalesceOrEmpty(cfg.LogFile, filepath.Join(cfg.DataDir, "callchat.log"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure directories exist
	os.MkdirAll(cfg.DataDir, 0755)
	os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755)

	if cfg.UserID == "" {
		cfg.UserID = stableUserID(filepath.Join(cfg.DataDir, userIDFile))
	}

	return cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("config error: %w", err)
	}
	switch verrs[0].Field() {
	case "Storage":
		return fmt.Errorf("invalid CALLCHAT_STORAGE %q: expected sqlite, badger or memory", c.Storage)
	case "BadgeCap":
		return fmt.Errorf("CALLCHAT_BADGE_CAP must be positive, got %d", c.BadgeCap)
	}
	return fmt.Errorf("config error: %w", err)
}

const userIDFile = "user_id"

// stableUserID returns the participant id kept at path, creating one on
// first use so own messages stay recognisable across restarts.
func stableUserID(path string) string {
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	id := uuid.NewString()
	_ = os.WriteFile(path, []byte(id+"\n"), 0o600)
	return id
}

// Stylesheets returns the primary surface stylesheet references mirrored
// into the secondary surface.
func (c *Config) Stylesheets() []string {
	return lo.Compact(lo.Map(strings.Split(c.PiPStylesheets, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}
