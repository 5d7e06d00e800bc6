package main

import (
	"testing"

	"github.com/mossy-p/webrtc-call/config"
)

func TestApplyFlags(t *testing.T) {
	cmd := commandServe()
	if err := cmd.ParseFlags([]string{
		"--listen", "127.0.0.1:9000",
		"--allowed-origins", "https://a.example,https://b.example",
		"--redis-addr", "redis.internal:6380",
		"--log-level", "debug",
	}); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{Port: "8080", LogLevel: "info", SendQueueSize: 256}
	if err := applyFlags(cmd, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "127.0.0.1:9000" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.Redis.Host != "redis.internal" || cfg.Redis.Port != "6380" {
		t.Fatalf("Redis = %+v", cfg.Redis)
	}
	if cfg.LogLevel != "debug" || cfg.SendQueueSize != 256 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestApplyFlagsDefaults(t *testing.T) {
	cmd := commandServe()
	cfg := &config.Config{Port: "8080", AllowedOrigins: []string{"https://env.example"}}
	if err := applyFlags(cmd, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Port != ":8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 1 {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}

	cmd = commandServe()
	if err := cmd.ParseFlags([]string{"--redis-addr", "no-port"}); err != nil {
		t.Fatal(err)
	}
	if err := applyFlags(cmd, &config.Config{}); err == nil {
		t.Fatal("expected error for redis-addr without port")
	}
}
