package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/euske/mcproxy/proto"
)

func TestChatStripsColorCodes(t *testing.T) {
	var buf bytes.Buffer
	l := NewServerLogger(&buf)
	l.HandleChat(proto.Chat{Text: "§cHello§r world"})
	if !strings.Contains(buf.String(), "chat: Hello world") {
		t.Fatalf("log line = %q, want color codes stripped", buf.String())
	}
}

func TestTimeUpdateRateGatedToOncePerHour(t *testing.T) {
	var buf bytes.Buffer
	l := NewServerLogger(&buf)

	l.HandleTimeUpdate(proto.TimeUpdate{Ticks: 0})
	l.HandleTimeUpdate(proto.TimeUpdate{Ticks: 500}) // still hour 0
	lines := strings.Count(buf.String(), "\n")
	if lines != 1 {
		t.Fatalf("expected one line for two same-hour updates, got %d: %q", lines, buf.String())
	}

	l.HandleTimeUpdate(proto.TimeUpdate{Ticks: 1500}) // hour 1
	lines = strings.Count(buf.String(), "\n")
	if lines != 2 {
		t.Fatalf("expected a new line on hour change, got %d: %q", lines, buf.String())
	}
}

func TestPlayerPosRateGateByTimeAndDistance(t *testing.T) {
	var buf bytes.Buffer
	l := NewClientLogger(&buf)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.HandlePlayerPos(proto.PlayerPos{X: 0, Y: 64, Z: 0})
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected first position to log: %q", buf.String())
	}

	// Small move, short elapsed time: suppressed.
	now = now.Add(10 * time.Second)
	l.HandlePlayerPos(proto.PlayerPos{X: 5, Y: 64, Z: 0})
	if strings.Count(buf.String(), "\n") != 1 {
		t.Fatalf("expected small nearby move to be suppressed: %q", buf.String())
	}

	// Large move within the time window: logs anyway.
	now = now.Add(1 * time.Second)
	l.HandlePlayerPos(proto.PlayerPos{X: 100, Y: 64, Z: 0})
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("expected large move to force a log line: %q", buf.String())
	}

	// Time elapses past the gate even without a big move.
	now = now.Add(61 * time.Second)
	l.HandlePlayerPos(proto.PlayerPos{X: 101, Y: 64, Z: 0})
	if strings.Count(buf.String(), "\n") != 3 {
		t.Fatalf("expected elapsed time to force a log line: %q", buf.String())
	}
}

func TestSkipFlagsSuppressLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewServerLogger(&buf)
	l.SkipChat = true
	l.HandleChat(proto.Chat{Text: "hi"})
	if buf.Len() != 0 {
		t.Fatalf("expected SkipChat to suppress the line, got %q", buf.String())
	}
}
