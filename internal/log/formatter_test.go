package log

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestFormatterPattern(t *testing.T) {
	f := &formatter{
		pattern: "%time [%level] %msg %field\n",
		time:    "2006-01-02",
	}
	entry := &logrus.Entry{
		Time:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "hello",
		Data:    logrus.Fields{"sid": 7, "keyword": "content"},
	}
	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	line := string(out)
	if !strings.HasPrefix(line, "2026-03-01 [warning] hello ") {
		t.Errorf("unexpected prefix: %q", line)
	}
	// fields are sorted for stable output
	if !strings.Contains(line, "keyword=content,sid=7") {
		t.Errorf("fields not rendered sorted: %q", line)
	}
}

func TestDecodeFileAppenderOpt(t *testing.T) {
	opt, err := DecodeFileAppenderOpt(map[string]interface{}{
		"filename":    "/var/log/sigparse.log",
		"max_size":    10,
		"max_backups": 3,
		"compress":    true,
	})
	if err != nil {
		t.Fatalf("DecodeFileAppenderOpt failed: %v", err)
	}
	if opt.Filename != "/var/log/sigparse.log" || opt.MaxSize != 10 ||
		opt.MaxBackups != 3 || !opt.Compress {
		t.Errorf("unexpected options %+v", opt)
	}

	if _, err := DecodeFileAppenderOpt(map[string]interface{}{"max_size": 1}); err == nil {
		t.Error("expected error for missing filename")
	}
}

func TestMultiWriterFanout(t *testing.T) {
	var a, b strings.Builder
	mw := NewMultiWriter().Add(&a).Add(&b)
	if _, err := mw.Write([]byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if a.String() != "x" || b.String() != "x" {
		t.Error("write should reach every writer")
	}
}
