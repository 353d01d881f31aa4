package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleLevel(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantInfo bool
		wantWarn bool
	}{
		{"default is warn", Options{}, false, true},
		{"verbose shows info", Options{Verbose: true}, true, true},
		{"verbose never lowers debug", Options{Level: "debug", Verbose: true}, true, true},
		{"error hides warn", Options{Level: "error"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.opts.Console = &buf
			log, err := New(tt.opts)
			require.NoError(t, err)
			defer log.Close()

			log.Info("info line")
			log.Warn("warn line")

			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("info line")))
			assert.Equal(t, tt.wantWarn, bytes.Contains(buf.Bytes(), []byte("warn line")))
		})
	}
}

func TestNew_FileGetsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posledger.log")
	var console bytes.Buffer

	log, err := New(Options{File: path, Console: &console})
	require.NoError(t, err)
	log.WithField("reference", "POS sale 1").Debug("debug line")
	log.Error("error line")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"debug line"`)
	assert.Contains(t, string(data), `"reference":"POS sale 1"`)
	assert.Contains(t, string(data), "error line")

	assert.NotContains(t, console.String(), "debug line")
	assert.Contains(t, console.String(), "error line")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
