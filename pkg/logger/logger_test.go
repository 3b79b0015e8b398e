package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestErrorCarriesContextFieldsAndStack(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "orders", Level: "debug", Output: &buf})

	ctx := log.WithRequestID(context.Background(), "req-42")
	ctx = log.WithOrderID(ctx, "ord-7")
	ctx = log.WithActorRole(ctx, "supplier")
	log.Error(ctx, "order update failed", errors.New("row locked"))

	out := buf.String()
	for _, want := range []string{
		`"request_id":"req-42"`,
		`"order_id":"ord-7"`,
		`"actor_role":"supplier"`,
		`"error":"row locked"`,
		`"service":"orders"`,
		`"stack"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in entry: %s", want, out)
		}
	}
}

func TestRequestIDFrom(t *testing.T) {
	log := Nop()
	if got := RequestIDFrom(context.Background()); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
	ctx := log.WithRequestID(context.Background(), "abc")
	ctx = log.WithField(ctx, "k", "v")
	if got := RequestIDFrom(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestFieldsDoNotLeakIntoParentContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})
	parent := context.Background()
	_ = log.WithUserID(parent, "u-1")
	log.Info(parent, "plain")
	if strings.Contains(buf.String(), "user_id") {
		t.Fatalf("parent context picked up child field: %s", buf.String())
	}
}

func TestWarnStackToggle(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, WarnStack: true}).Warn(context.Background(), "slow query")
	if !strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("expected stack with warn stack enabled: %s", buf.String())
	}

	buf.Reset()
	New(Options{Output: &buf}).Warn(context.Background(), "slow query")
	if strings.Contains(buf.String(), `"stack"`) {
		t.Fatalf("unexpected stack: %s", buf.String())
	}
}

func TestDefaultsFilterDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf})
	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info, got %s", buf.String())
	}
	log.Info(context.Background(), "visible")
	if !strings.Contains(buf.String(), `"service":"marketplace"`) {
		t.Fatalf("expected default service name: %s", buf.String())
	}
}

func TestConsoleFormatIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, Format: "Console"}).Info(context.Background(), "hello")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("console format produced json: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":         zerolog.InfoLevel,
		"bogus":    zerolog.InfoLevel,
		" WARN ":   zerolog.WarnLevel,
		"debug":    zerolog.DebugLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Error(log.WithField(context.Background(), "k", "v"), "ignored", errors.New("x"))
}
