package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestConfigureReportLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("report", "text", "stderr", 0); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !log.IsLevelEnabled(logrus.InfoLevel) || log.IsLevelEnabled(logrus.DebugLevel) {
		t.Fatalf("report level should log at info")
	}
}

func TestConfigureFileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "spreadwatch.log")
	log := Logger()
	if err := log.Configure("debug", "json", path, 1); err != nil {
		t.Fatalf("configure: %v", err)
	}
	log.WithComponent("test").Info("written to file")
}

func TestJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)
	log.WithComponent("session").WithFields(Fields{"symbol": "BTCUSDT"}).Info("hello")

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	for _, key := range []string{"timestamp", "level", "message", "component", "symbol"} {
		if _, ok := out[key]; !ok {
			t.Errorf("missing key %q in %v", key, out)
		}
	}
}

func TestLogMetricWithoutCloudWatch(t *testing.T) {
	var buf bytes.Buffer
	log := Logger()
	log.SetOutput(&buf)
	log.LogMetric("session", "spread_alerts", int64(3), "counter", Fields{"symbol": "BTCUSDT"})
	if !bytes.Contains(buf.Bytes(), []byte(`"metric":"spread_alerts"`)) {
		t.Fatalf("metric line missing: %s", buf.String())
	}
}

func channelLevels(name string) (messages, levels int64) {
	v, ok := channels.Load(name)
	if !ok {
		return 0, 0
	}
	cs := v.(*channelStat)
	return cs.messages, cs.levels
}

func TestStreamMessageCountsLevels(t *testing.T) {
	msgBefore, lvlBefore := channelLevels("depth_stream")
	IncrementStreamMessage(3)
	IncrementStreamMessage(0)
	msgAfter, lvlAfter := channelLevels("depth_stream")
	if msgAfter-msgBefore != 2 || lvlAfter-lvlBefore != 3 {
		t.Fatalf("messages +%d levels +%d, want +2 and +3", msgAfter-msgBefore, lvlAfter-lvlBefore)
	}
}
