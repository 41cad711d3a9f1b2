package log

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestGetLoggerDefault(t *testing.T) {
	if got := GetLogger(context.Background()); got != Discard {
		t.Fatalf("GetLogger() = %v, want Discard", got)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.DebugLevel)

	ctx := WithLogger(context.Background(), logger)
	GetLogger(ctx).Debugf("sending %d bytes", 42)

	if !strings.Contains(buf.String(), "sending 42 bytes") {
		t.Errorf("log output %q does not contain the message", buf.String())
	}
}

func TestWithLoggerEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	ctx := WithLogger(context.Background(), logger.WithField("request", "abc"))
	GetLogger(ctx).Warn("content type mismatch")

	out := buf.String()
	if !strings.Contains(out, "request=abc") || !strings.Contains(out, "content type mismatch") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestDiscard(t *testing.T) {
	// must not panic
	Discard.Debug("a")
	Discard.Debugf("%s", "a")
	Discard.Info("a")
	Discard.Infof("%s", "a")
	Discard.Warn("a")
	Discard.Warnf("%s", "a")
	Discard.Error("a")
	Discard.Errorf("%s", "a")
}
