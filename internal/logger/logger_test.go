package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

// TestSetup_OutputsJSON はJSON形式でログが出力されることを検証する。
func TestSetup_OutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Info("test message", slog.String("key", "value"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ログ出力はJSONであるべき: %v", err)
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

// TestSetup_DebugLevelSuppressed はInfo未満のレベルが抑制されることを検証する。
func TestSetup_DebugLevelSuppressed(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf)

	logger.Debug("debug message")

	if buf.Len() != 0 {
		t.Errorf("Debugレベルのログは出力されないべき: %s", buf.String())
	}
}

// TestSetupDefault_SetsGlobalLogger はグローバルロガーが設定されることを検証する。
func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	SetupDefault(&buf)

	slog.Info("global log")

	if buf.Len() == 0 {
		t.Error("グローバルロガー経由のログが出力されるべき")
	}
}
