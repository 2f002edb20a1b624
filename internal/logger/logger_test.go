package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInitLogger_ParsesLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, InitLogger("debug").GetLevel())
	assert.Equal(t, zerolog.WarnLevel, InitLogger("WARN").GetLevel())
}

func TestInitLogger_DefaultsToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, InitLogger("").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, InitLogger("verbose").GetLevel())
}
