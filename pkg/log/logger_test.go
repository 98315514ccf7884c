package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/YuminosukeSato/scoreml/pkg/errors"
)

func TestZerologLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo).With(ComponentKey, "training")

	logger.Debug("hidden")
	logger.Info("Candidate evaluated", ModelNameKey, "Random Forest", TestR2Key, 0.87)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["message"] != "Candidate evaluated" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry[ComponentKey] != "training" {
		t.Errorf("context field missing: %v", entry)
	}
	if entry[ModelNameKey] != "Random Forest" {
		t.Errorf("model name missing: %v", entry)
	}
	if entry[TestR2Key] != 0.87 {
		t.Errorf("score = %v", entry[TestR2Key])
	}
}

func TestZerologLoggerErrorCarriesSite(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug)

	err := errors.NewQualityGateError("AdaBoost", 0.5, 0.6)
	logger.Error("Training failed", err, OperationKey, OperationFit)

	var entry map[string]interface{}
	if jerr := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); jerr != nil {
		t.Fatalf("invalid JSON: %v", jerr)
	}
	if !strings.Contains(fmt.Sprint(entry["error"]), "no acceptable model found") {
		t.Errorf("error field = %v", entry["error"])
	}
	if !strings.HasPrefix(fmt.Sprint(entry[SiteKey]), "logger_test.go:") {
		t.Errorf("site field = %v", entry[SiteKey])
	}
	if entry[OperationKey] != OperationFit {
		t.Errorf("operation field = %v", entry[OperationKey])
	}
}

func TestZerologLoggerEnabled(t *testing.T) {
	logger := NewZerologLogger(&bytes.Buffer{}, LevelWarn)
	ctx := context.Background()
	if logger.Enabled(ctx, LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(ctx, LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestRouteWarnings(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelDebug)
	restore := RouteWarnings(logger)
	defer restore()

	errors.Warn(errors.NewUndefinedMetricWarning("R2Score", "zero variance in y_true", 1))

	if !strings.Contains(buf.String(), `"type":"UndefinedMetricWarning"`) {
		t.Errorf("warning not embedded: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTestLoggerWith(t *testing.T) {
	logger := NewTestLogger(LevelInfo)
	child := logger.With(ModelNameKey, "TestModel", ComponentKey, "test")

	child.Info("contextual message", OperationKey, OperationFit)
	child.Debug("filtered")

	if !logger.ContainsField(ModelNameKey, "TestModel") {
		t.Error("context field not captured in shared buffer")
	}
	if !logger.ContainsField(OperationKey, OperationFit) {
		t.Error("record field not captured")
	}
	if logger.ContainsMessage("filtered") {
		t.Error("debug record should be filtered at info level")
	}
	if got := logger.Count("contextual"); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
}
