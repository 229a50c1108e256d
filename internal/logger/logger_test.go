package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/nouns-dao/nouns-onchain/internal/logger"
)

func TestLogger_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelInfo, "nouns-onchain", func(context.Context) string { return "abc123" })

	log.Info(context.Background(), "treasury fetched", "total", "3500000000000000000")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not JSON: %v (%s)", err, buf.String())
	}

	if rec["msg"] != "treasury fetched" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["service"] != "nouns-onchain" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["trace_id"] != "abc123" {
		t.Errorf("trace_id = %v", rec["trace_id"])
	}
	if rec["total"] != "3500000000000000000" {
		t.Errorf("total = %v", rec["total"])
	}
	src, _ := rec["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source = %q, want caller file", src)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, logger.LevelWarn, "svc", nil)

	log.Debug(context.Background(), "dropped")
	log.Info(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %s", buf.String())
	}

	log.Error(context.Background(), "kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected error record, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logger.Level{
		"debug":   logger.LevelDebug,
		"WARN":    logger.LevelWarn,
		"warning": logger.LevelWarn,
		"error":   logger.LevelError,
		"info":    logger.LevelInfo,
		"bogus":   logger.LevelInfo,
	}
	for in, want := range tests {
		if got := logger.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
