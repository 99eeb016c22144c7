package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerCollapsesTrivialCases(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Errorf("expected NoopHandler when every handler is nil")
	}

	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if got := newFanoutHandler(nil, inner, nil); got != inner {
		t.Errorf("expected single non-nil handler to be returned unwrapped, got %T", got)
	}
}

func TestFanoutHandlerRespectsPerHandlerLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newFanoutHandler(infoHandler, debugHandler)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("fanout should be enabled when any handler accepts the level")
	}

	logger := slog.New(h)
	logger.Debug("debug only")
	logger.Info("both")

	if infoBuf.Len() == 0 || bytes.Contains(infoBuf.Bytes(), []byte("debug only")) {
		t.Errorf("info sink should carry info records only, got %q", infoBuf.String())
	}
	if !bytes.Contains(debugBuf.Bytes(), []byte("debug only")) {
		t.Errorf("debug sink missing debug record, got %q", debugBuf.String())
	}
}

func TestFanoutHandlerPropagatesAttrsAndGroups(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&buf1, nil),
		slog.NewJSONHandler(&buf2, nil),
	)

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("key", "value")}).WithGroup("grp"))
	logger.Info("test", slog.String("field", "value"))

	for name, buf := range map[string]*bytes.Buffer{"first": &buf1, "second": &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"key"`)) {
			t.Errorf("%s sink missing shared attr: %q", name, buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"grp"`)) {
			t.Errorf("%s sink missing group: %q", name, buf.String())
		}
	}
}

func TestTeeLoggerDuplicatesRecords(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))

	logger := TeeLogger(base, slog.NewJSONHandler(&teeBuf, nil))
	logger.Info("teed message")

	if baseBuf.Len() == 0 {
		t.Error("expected output in base sink")
	}
	if teeBuf.Len() == 0 {
		t.Error("expected output in tee sink")
	}

	teeBuf.Reset()
	TeeLogger(nil, slog.NewJSONHandler(&teeBuf, nil)).Info("no base")
	if teeBuf.Len() == 0 {
		t.Error("expected output with nil base")
	}
}
