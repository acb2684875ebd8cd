package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewUsesServiceKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "creditd", "test", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("ready", MaskField("token", "abc"), MaskField("method", "credit_payment"))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v (%q)", err, buf.String())
	}
	for key, want := range map[string]string{
		"message":  "ready",
		"severity": "INFO",
		"service":  "creditd",
		"env":      "test",
		"token":    RedactedValue,
		"method":   "credit_payment",
	} {
		if line[key] != want {
			t.Fatalf("%s: expected %q, got %v", key, want, line[key])
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("timestamp key missing")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestFieldsMasksUnlistedKeys(t *testing.T) {
	fields := Fields(map[string]string{"planId": "3", "memo": "private", "amount": "25", "note": ""})
	got := map[string]string{}
	var order []string
	for _, field := range fields {
		attr := field.(slog.Attr)
		got[attr.Key] = attr.Value.String()
		order = append(order, attr.Key)
	}
	want := map[string]string{"planId": "3", "memo": RedactedValue, "amount": "25", "note": ""}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("%s: expected %q, got %q", key, value, got[key])
		}
	}
	if strings.Join(order, ",") != "amount,memo,note,planId" {
		t.Fatalf("fields not sorted: %v", order)
	}
	if !IsAllowlisted(" RequestID ") {
		t.Fatalf("request ids should be allowlisted")
	}
}
