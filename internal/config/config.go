package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultUserID is the identity used by a local single-user install. Hosted
// deployments override it with the authenticated user's id.
const DefaultUserID = "00000000-0000-4000-8000-000000000001"

// Config defines everything the engine treats as external policy: identity,
// storage location, the HTTP server, XP amounts, the level curve and the
// achievement rule table.
type Config struct {
	DB           DBConfig          `yaml:"db"`
	Server       ServerConfig      `yaml:"server"`
	User         UserConfig        `yaml:"user"`
	Progression  ProgressionConfig `yaml:"progression"`
	Recurrence   RecurrenceConfig  `yaml:"recurrence"`
	Achievements []AchievementRule `yaml:"achievements"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type UserConfig struct {
	ID string `yaml:"id"`
}

type ProgressionConfig struct {
	HabitXP int        `yaml:"habit_xp"`
	TaskXP  int        `yaml:"task_xp"`
	Curve   LevelCurve `yaml:"curve"`
}

// LevelCurve parameterizes XP_req = coefficient * level^exponent.
type LevelCurve struct {
	Coefficient float64 `yaml:"coefficient"`
	Exponent    float64 `yaml:"exponent"`
}

type RecurrenceConfig struct {
	// CopyLinkedTransaction carries linked_transaction_id across recurrence
	// advances (bill-reminder tasks). Off by default.
	CopyLinkedTransaction bool `yaml:"copy_linked_transaction"`
}

type AchievementRule struct {
	Type        string `yaml:"type"`
	Requirement string `yaml:"requirement"`
	Target      int    `yaml:"target"`
	XPReward    int    `yaml:"xp_reward"`
}

// Load reads configuration from an optional YAML file and environment
// variables, on top of defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		User: UserConfig{
			ID: DefaultUserID,
		},
		Progression: ProgressionConfig{
			HabitXP: 10,
			TaskXP:  25,
			Curve: LevelCurve{
				Coefficient: 500,
				Exponent:    1.5,
			},
		},
		Achievements: DefaultRules(),
	}

	if path := os.Getenv("LIFELINE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if dbPath := os.Getenv("LIFELINE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if host := os.Getenv("LIFELINE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("LIFELINE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LIFELINE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if userID := os.Getenv("LIFELINE_USER_ID"); userID != "" {
		cfg.User.ID = userID
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// DefaultRules is the stock achievement table. Game-balance content, not
// engine logic; installs replace it wholesale from the YAML file.
func DefaultRules() []AchievementRule {
	return []AchievementRule{
		{Type: "first_habit", Requirement: "habits_completed", Target: 1, XPReward: 10},
		{Type: "habit_builder", Requirement: "habits_completed", Target: 50, XPReward: 50},
		{Type: "habit_machine", Requirement: "habits_completed", Target: 250, XPReward: 150},
		{Type: "first_task", Requirement: "tasks_completed", Target: 1, XPReward: 10},
		{Type: "finisher", Requirement: "tasks_completed", Target: 25, XPReward: 50},
		{Type: "closer", Requirement: "tasks_completed", Target: 100, XPReward: 150},
		{Type: "week_streak", Requirement: "streak", Target: 7, XPReward: 25},
		{Type: "month_streak", Requirement: "streak", Target: 30, XPReward: 100},
		{Type: "level_5", Requirement: "level", Target: 5, XPReward: 0},
		{Type: "level_10", Requirement: "level", Target: 10, XPReward: 0},
	}
}
