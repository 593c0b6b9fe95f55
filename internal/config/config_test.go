package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 20, cfg.Memory.WorkingCapacity)
	assert.Equal(t, 50, cfg.Memory.ShortTermCapacity)
	assert.Equal(t, 500, cfg.Memory.LongTermCapacity)
	assert.Equal(t, 25, cfg.Memory.SignificantEvents)

	assert.Equal(t, 0.7, cfg.Memory.WorkingThreshold)
	assert.Equal(t, 0.8, cfg.Memory.LongTermThreshold)
	assert.Equal(t, 0.9, cfg.Memory.SignificantThreshold)

	assert.Equal(t, 30*time.Minute, cfg.Memory.ConversationGap)
	assert.Equal(t, 5*time.Minute, cfg.Maintenance.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Backup.Interval)
	assert.Equal(t, 10, cfg.Backup.History)

	assert.Contains(t, cfg.Memory.HighIntensityEmotions, "hopeless")
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:37791", cfg.ListenAddr())
}
