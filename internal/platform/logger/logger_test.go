package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput("debug", "json", &buf)
	Module(log, "cart").WithField("cart_id", "c1").Info("line added")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "cart", rec["module"])
	assert.Equal(t, "c1", rec["cart_id"])
	assert.Equal(t, "line added", rec["msg"])
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	log := newWithOutput("loud", "text", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
