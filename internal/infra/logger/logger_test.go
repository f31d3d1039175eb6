package logger

import (
	"os"
	"path/filepath"
	"testing"

	"petcare_reminders/internal/infra/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_LevelAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "petcare.log")
	t.Cleanup(func() { Log.SetOutput(os.Stdout) })

	Init(&config.AppConfig{LogLevel: "debug", Environment: "production", LogFile: path})
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Log.Formatter)

	For("scheduler").Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"scheduler"`)
}

func TestInit_InvalidLevelFallsBack(t *testing.T) {
	Init(&config.AppConfig{LogLevel: "chatty", Environment: "development"})
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, Log.Formatter)
}
