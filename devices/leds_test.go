package devices

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iadeleke/domisafe/gpio"
)

func newBank() (*LedBank, map[string]*fakeLine) {
	lines := map[string]*fakeLine{
		"yellow": {},
		"red":    {},
		"green":  {},
	}
	outputs := map[string]gpio.Output{}
	for name, line := range lines {
		outputs[name] = line
	}
	return NewLedBank(outputs), lines
}

func TestLedSet(t *testing.T) {
	bank, lines := newBank()
	bank.Set("red", true)
	assert.True(t, lines["red"].asserted())
	assert.False(t, lines["green"].asserted())

	bank.Set("red", false)
	assert.False(t, lines["red"].asserted())
}

func TestLedUnknownName(t *testing.T) {
	bank, lines := newBank()
	assert.NotPanics(t, func() {
		bank.Set("purple", true)
	})
	for _, line := range lines {
		assert.False(t, line.asserted())
	}
	states := bank.States()
	_, exists := states["purple"]
	assert.False(t, exists, "unknown channel must not be added")
}

func TestLedAll(t *testing.T) {
	bank, lines := newBank()
	bank.All(true)
	for name, line := range lines {
		assert.True(t, line.asserted(), name)
	}
	bank.All(false)
	for name, line := range lines {
		assert.False(t, line.asserted(), name)
	}
}

func TestLedStatesCopy(t *testing.T) {
	bank, _ := newBank()
	bank.Set("green", true)
	states := bank.States()
	assert.True(t, states["green"])
	states["green"] = false
	assert.True(t, bank.States()["green"], "States must return a copy")
}

func TestLedCleanup(t *testing.T) {
	bank, lines := newBank()
	bank.All(true)
	bank.Cleanup()
	bank.Cleanup()
	for _, line := range lines {
		assert.False(t, line.asserted())
	}
}
