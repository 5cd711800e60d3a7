package logging

import (
	"bytes"
	"os"
	"testing"

	clog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestSetupLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	defer Setup(os.Stderr, "info")

	Setup(&buf, "warn")
	Infof("hidden %d", 1)
	Warnf("shown %s", "warn")
	Errorf("shown %s", "error")

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown warn")
	assert.Contains(t, out, "shown error")
}

func TestSetupUnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	defer Setup(os.Stderr, "info")

	Setup(&buf, "chatty")
	assert.Equal(t, clog.InfoLevel, L.GetLevel())
	Debugf("dbg")
	Infof("hello")
	assert.NotContains(t, buf.String(), "dbg")
	assert.Contains(t, buf.String(), "hello")
}
