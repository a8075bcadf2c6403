package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{name: "default", level: "", want: logrus.InfoLevel},
		{name: "debug", level: "debug", want: logrus.DebugLevel},
		{name: "warn", level: "warn", want: logrus.WarnLevel},
		{name: "bogus", level: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(Options{Level: tt.level, Output: &bytes.Buffer{}})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown level")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if log.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", log.GetLevel(), tt.want)
			}
		})
	}
}

func TestNew_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Output: &buf, NoColors: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	log.WithFields(Fields{"fingers": 3}).Info("frame analyzed")

	out := buf.String()
	if !strings.Contains(out, "frame analyzed") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "fingers:3") {
		t.Errorf("output missing field: %q", out)
	}
}

func TestNew_FileSink(t *testing.T) {
	file := filepath.Join(t.TempDir(), "mudra.log")
	log, err := New(Options{Output: &bytes.Buffer{}, File: file, NoColors: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	log.Info("to file")

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing")
	if log.GetLevel() != logrus.PanicLevel {
		t.Errorf("level = %v, want panic", log.GetLevel())
	}
}
