package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	LogDirs         []string
	OutputDir       string
	PromptTypesPath string
	VariantsPath    string
	StatePath       string
	Port            int
	ServeAPI        bool
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
}

func Load() Config {
	return Config{
		LogDirs:         envList("PROMPTBENCH_LOG_DIRS", []string{"logs"}),
		OutputDir:       envStr("PROMPTBENCH_OUTPUT_DIR", "data"),
		PromptTypesPath: envStr("PROMPTBENCH_PROMPT_TYPES", "prompt_types.json"),
		VariantsPath:    envStr("PROMPTBENCH_VARIANTS", "prompt_type_variants.json"),
		StatePath:       envStr("PROMPTBENCH_STATE", ""),
		Port:            envInt("PROMPTBENCH_PORT", 8760),
		ServeAPI:        envBool("PROMPTBENCH_SERVE", false),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var dirs []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			dirs = append(dirs, p)
		}
	}
	if len(dirs) == 0 {
		return fallback
	}
	return dirs
}
