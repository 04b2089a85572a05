package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	paths := [][]string{
		{"status"},
		{"convs"},
		{"call", "hangup", "c1"},
		{"call", "mute", "c1", "audio"},
		{"reqs", "accept", "jami:aa"},
		{"contact", "remove", "jami:aa"},
		{"profile", "use", "work"},
	}
	for _, path := range paths {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			cmd, _, err := rootCmd.Find(path)
			require.NoError(t, err)
			assert.NotEqual(t, rootCmd, cmd)
		})
	}
}

func TestArgsValidation(t *testing.T) {
	assert.Error(t, sendCmd.Args(sendCmd, []string{"conv"}))
	assert.NoError(t, sendCmd.Args(sendCmd, []string{"conv", "hello"}))
	assert.Error(t, statusCmd.Args(statusCmd, []string{"extra"}))
	assert.Error(t, callJoinCmd.Args(callJoinCmd, []string{"conf1"}))
}

func TestMillis(t *testing.T) {
	assert.Equal(t, "-", millis(0))
	assert.NotEqual(t, "-", millis(1700000000000))
}
