package board

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/aot/compiler/machine"
)

const k64f = `
name: k64f
platform:
  name: armv7m
  vfp: true
memory:
  - name: flash
    start: 0x0
    end: 0x100000
    usage: [code, data_ro]
    attributes: [flash, internal]
  - name: sram
    start: 0x20000000
    end: 536936448
    usage: [data_rw]
    attributes: [ram]
entry_points: ["Program::Main()"]
runtime_methods: ["Runtime::Fault()"]
disabled_phases: [LayoutBlocks]
backend: llvm
strict: true
workers: 4
dump:
  dir: /tmp/dump
  phases: [SimplifyControlFlow]
`

func TestLoad(t *testing.T) {
	b, err := Load(strings.NewReader(k64f))
	require.NoError(t, err)

	assert.Equal(t, "k64f", b.Name)
	assert.True(t, b.Platform.VFP)
	assert.Equal(t, BackendLLVM, b.Backend)
	assert.True(t, b.Strict)
	assert.Equal(t, 4, b.Workers)
	assert.True(t, b.PhaseDisabled("LayoutBlocks"))
	assert.False(t, b.PhaseDisabled("EmitCode"))
	assert.Equal(t, []string{"SimplifyControlFlow"}, b.Dump.Phases)

	cfg, err := b.TargetConfig()
	require.NoError(t, err)

	require.Len(t, cfg.Memory, 2)
	assert.Equal(t, uint32(0x100000), cfg.Memory[0].End)
	assert.Equal(t, machine.UsageCode|machine.UsageDataRO, cfg.Memory[0].Usage)
	assert.Equal(t, uint32(0x20000000), cfg.Memory[1].Start)
	assert.Equal(t, uint32(0x20010000), cfg.Memory[1].End)
	assert.Equal(t, machine.AttrRAM, cfg.Memory[1].Attributes)
	assert.Equal(t, []string{"Runtime::Fault()"}, cfg.RuntimeMethods)
}

func TestLoadDefaults(t *testing.T) {
	b, err := Load(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, Default(), b)
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name, text, err string
	}{
		{"unknown field", "platfrom: {name: x}", "platfrom"},
		{"backend", "backend: gcc", "backend"},
		{"usage", "memory: [{name: a, start: 0, end: 16, usage: [stack]}]", "memory[0].usage"},
		{"attributes", "memory: [{name: a, start: 0, end: 16, attributes: [rom]}]", "memory[0].attributes"},
		{"empty range", "memory: [{name: a, start: 16, end: 16}]", "memory[0].end"},
		{"address", "memory: [{name: a, start: zero, end: 16}]", "bad address"},
		{"workers", "workers: -1", "workers"},
		{"platform", "platform: {name: ''}", "platform.name"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.text))
			assert.ErrorContains(t, err, tc.err)
		})
	}
}
