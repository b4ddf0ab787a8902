package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	l := build(&buf, logrus.DebugLevel)

	l.WithField("component", "headset").Info("connected")
	assert.Contains(t, buf.String(), "component=headset")
	assert.Contains(t, buf.String(), "msg=connected")
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, Root().GetLevel())

	assert.Error(t, SetLevel("loud"))
	assert.Equal(t, logrus.DebugLevel, Root().GetLevel())

	require.NoError(t, SetLevel("info"))
}
