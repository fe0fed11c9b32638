package board

import (
	"bytes"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/slowlang/aot/compiler/machine"
	"github.com/slowlang/aot/compiler/target"
)

type (
	// Board is the configuration of one compilation target.
	Board struct {
		Name     string   `yaml:"name"`
		Platform Platform `yaml:"platform"`

		Memory []MemoryRange `yaml:"memory,omitempty"`

		EntryPoints    []string `yaml:"entry_points,omitempty"`
		RuntimeMethods []string `yaml:"runtime_methods,omitempty"`

		DisabledPhases []string `yaml:"disabled_phases,omitempty"`

		Backend string `yaml:"backend"`
		Strict  bool   `yaml:"strict"`
		Workers int    `yaml:"workers"`

		Dump Dump `yaml:"dump"`
	}

	Platform struct {
		Name      string `yaml:"name"`
		VFP       bool   `yaml:"vfp"`
		BigEndian bool   `yaml:"big_endian"`
	}

	MemoryRange struct {
		Name       string   `yaml:"name"`
		Start      Address  `yaml:"start"`
		End        Address  `yaml:"end"`
		Usage      []string `yaml:"usage"`
		Attributes []string `yaml:"attributes"`
		Sections   []string `yaml:"sections,omitempty"`
	}

	Dump struct {
		Dir    string   `yaml:"dir"`
		Phases []string `yaml:"phases,omitempty"`
		XML    bool     `yaml:"xml"`
	}

	// Address accepts decimal and 0x prefixed hex.
	Address uint32
)

const (
	BackendAsm  = "asm"
	BackendLLVM = "llvm"
)

func Default() *Board {
	return &Board{
		Name: "generic",
		Platform: Platform{
			Name: "armv7m",
		},
		Backend: BackendAsm,
		Workers: 1,
	}
}

func LoadFile(name string) (*Board, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read board")
	}

	b, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "board %v", name)
	}

	return b, nil
}

// Load reads a board over the defaults. Unknown fields are errors.
func Load(r io.Reader) (*Board, error) {
	b := Default()

	d := yaml.NewDecoder(r)
	d.KnownFields(true)

	err := d.Decode(b)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	if err = b.Validate(); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Board) Validate() error {
	if b.Platform.Name == "" {
		return errors.New("platform.name: required")
	}

	switch b.Backend {
	case BackendAsm, BackendLLVM:
	default:
		return errors.New("backend: unknown back end %q", b.Backend)
	}

	if b.Workers < 0 {
		return errors.New("workers: negative value %d", b.Workers)
	}

	for i, m := range b.Memory {
		if m.End <= m.Start {
			return errors.New("memory[%d].end: %#x is not above start %#x", i, uint32(m.End), uint32(m.Start))
		}

		if _, err := m.usage(); err != nil {
			return errors.Wrap(err, "memory[%d].usage", i)
		}

		if _, err := m.attributes(); err != nil {
			return errors.Wrap(err, "memory[%d].attributes", i)
		}
	}

	return nil
}

// TargetConfig converts the board into platform construction parameters.
func (b *Board) TargetConfig() (target.Config, error) {
	cfg := target.Config{
		VFP:            b.Platform.VFP,
		BigEndian:      b.Platform.BigEndian,
		RuntimeMethods: b.RuntimeMethods,
	}

	for i, m := range b.Memory {
		u, err := m.usage()
		if err != nil {
			return cfg, errors.Wrap(err, "memory[%d].usage", i)
		}

		a, err := m.attributes()
		if err != nil {
			return cfg, errors.Wrap(err, "memory[%d].attributes", i)
		}

		cfg.Memory = append(cfg.Memory, machine.MemoryRange{
			Name:       m.Name,
			Start:      uint32(m.Start),
			End:        uint32(m.End),
			Usage:      u,
			Attributes: a,
			Sections:   m.Sections,
		})
	}

	return cfg, nil
}

func (b *Board) PhaseDisabled(name string) bool {
	for _, p := range b.DisabledPhases {
		if p == name {
			return true
		}
	}

	return false
}

func (m MemoryRange) usage() (u machine.MemoryUsage, err error) {
	for _, s := range m.Usage {
		x, ok := machine.ParseUsage(s)
		if !ok {
			return 0, errors.New("unknown usage %q", s)
		}

		u |= x
	}

	return u, nil
}

func (m MemoryRange) attributes() (a machine.MemoryAttributes, err error) {
	for _, s := range m.Attributes {
		x, ok := machine.ParseAttributes(s)
		if !ok {
			return 0, errors.New("unknown attribute %q", s)
		}

		a |= x
	}

	return a, nil
}

func (a *Address) UnmarshalYAML(value *yaml.Node) error {
	x, err := strconv.ParseUint(value.Value, 0, 32)
	if err != nil {
		return errors.New("line %d: bad address %q", value.Line, value.Value)
	}

	*a = Address(x)

	return nil
}

func (a Address) MarshalYAML() (interface{}, error) {
	return "0x" + strconv.FormatUint(uint64(a), 16), nil
}
