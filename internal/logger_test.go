package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigureLogger(t *testing.T) {
	defer SetLogLevel(LevelInfo)

	assert.Nil(t, ConfigureLogger("DEBUG"))
	assert.Equal(t, LevelDebug, getLevel())
	assert.True(t, shouldLog(LevelInfo))

	assert.Nil(t, ConfigureLogger(""))
	assert.Equal(t, LevelInfo, getLevel())
	assert.False(t, shouldLog(LevelDebug))

	assert.NotNil(t, ConfigureLogger("loud"))
	assert.Equal(t, LevelInfo, getLevel())
}

func TestMakeLoggerArgs(t *testing.T) {
	assert.Nil(t, makeLoggerArgs(nil))

	args := makeLoggerArgs(Fields{FieldPath: "/tmp/a", FieldBytes: 3})
	assert.Len(t, args, 2)
	assert.Equal(t, "bytes", args[0].Key)
	assert.Equal(t, "path", args[1].Key)
}
