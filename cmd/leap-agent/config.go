package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type agentConfig struct {
	ReceiverAddress string
	DialTimeout     time.Duration
	LogLevel        string
}

func defaultAgentConfig() agentConfig {
	return agentConfig{
		ReceiverAddress: "127.0.0.1:9063",
		DialTimeout:     10 * time.Second,
	}
}

type fileConfig struct {
	ReceiverAddress string `toml:"receiver_address"`
	DialTimeout     string `toml:"dial_timeout"`
	LogLevel        string `toml:"log_level"`
}

func loadAgentConfig(path string) (agentConfig, error) {
	cfg := defaultAgentConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return agentConfig{}, fmt.Errorf("load agent config: %w", err)
	}

	if meta.IsDefined("receiver_address") {
		addr := strings.TrimSpace(raw.ReceiverAddress)
		if addr != "" {
			cfg.ReceiverAddress = addr
		}
	}

	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return agentConfig{}, fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}
