package main

import "testing"

func TestRelayURL(t *testing.T) {
	tests := []struct {
		base, code, want string
	}{
		{"ws://localhost:8080/ws", "", "ws://localhost:8080/ws"},
		{"ws://localhost:8080/ws", "ABC234", "ws://localhost:8080/ws/signal/ABC234"},
		{"wss://relay.example/ws/", "ABC234", "wss://relay.example/ws/signal/ABC234"},
	}
	for _, tt := range tests {
		if got := relayURL(tt.base, tt.code); got != tt.want {
			t.Errorf("relayURL(%q, %q) = %q, want %q", tt.base, tt.code, got, tt.want)
		}
	}
}
