package log

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now = time.Now().Unix()
	err = fmt.Errorf("error message")
)

// Fatal and Fatalf are not tested
func TestLogger(t *testing.T) {
	SetLogger(6, false, true)
	assert.False(t, JSONFormat)
	assert.Equal(t, logrus.TraceLevel, logrus.GetLevel())

	WithFields("timestamp", now, "err", err).Tracef("test WithFields Tracef at %v", now)
	WithFields("timestamp", now, "err", err).Infof("test WithFields Infof at %v", now)
	WithFields("odd").Info("odd number of fields is tolerated")
	WithFields(1, 2).Info("non string key is skipped")

	Trace("test Trace", "timestamp", now, "err", err)
	Debug("test Debug", "timestamp", now, "err", err)
	Info("test Info", "timestamp", now, "err", err)
	Warn("test Warn", "timestamp", now, "err", err)
	Error("test Error", "timestamp", now, "err", err)
	Infof("test Infof, timestamp=%v err=%v", now, err)
	Warnf("test Warnf, timestamp=%v err=%v", now, err)
	Errorf("test Errorf, timestamp=%v err=%v", now, err)
	Println("test Println", "timestamp", now)

	SetLogger(4, true, false)
	assert.True(t, JSONFormat)
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func TestComponentLogger(t *testing.T) {
	SetLogger(6, false, false)
	l := New("connection")
	assert.Equal(t, "[connection] ", l.prefix)
	l.Trace("trace", "attempt", 1)
	l.Debug("debug", "attempt", 1)
	l.Info("info", "attempt", 1)
	l.Warn("warn", "attempt", 1)
	l.Error("error", err, "attempt", 1)
}

func TestSetLogFile(t *testing.T) {
	SetLogger(4, false, false)
	dir, e := ioutil.TempDir("", "ledgerclient-log")
	require.NoError(t, e)
	defer os.RemoveAll(dir)

	require.NoError(t, SetLogFile(dir, 0, 0))
	defer logrus.SetOutput(os.Stdout)

	Info("written to rotated file", "dir", dir)
	matches, e := filepath.Glob(filepath.Join(dir, "ledgerclient.*.log"))
	require.NoError(t, e)
	assert.NotEmpty(t, matches)
}
