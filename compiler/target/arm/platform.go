package arm

import (
	"fmt"

	"github.com/slowlang/aot/compiler/closure"
	"github.com/slowlang/aot/compiler/ir"
	"github.com/slowlang/aot/compiler/machine"
	"github.com/slowlang/aot/compiler/target"
	"tlog.app/go/errors"
)

type (
	// Platform is an ARMv7-M core with an optional VFPv4-SP/DP unit.
	Platform struct {
		cfg target.Config

		regs   []*machine.RegisterDescriptor
		byEnc  map[uint32]*machine.RegisterDescriptor
		byName map[string]*machine.RegisterDescriptor

		mem *machine.MemoryMap

		cc *AAPCS
	}

	isa struct {
		vfp bool
	}
)

const Name = "armv7m"

// Register encodings. Floating point files live above the core ones.
const (
	EncR0   uint32 = 0
	EncR12  uint32 = 12
	EncSP   uint32 = 13
	EncLR   uint32 = 14
	EncPC   uint32 = 15
	EncS0   uint32 = 32
	EncD0   uint32 = 64
	EncCPSR uint32 = 96
)

var defaultMemory = []machine.MemoryRange{
	{
		Name:       "flash",
		Start:      0x0000_0000,
		End:        0x0010_0000,
		Usage:      machine.UsageCode | machine.UsageDataRO | machine.UsageVectorsTable | machine.UsageBootstrap,
		Attributes: machine.AttrFLASH | machine.AttrInternalMemory | machine.AttrLoadedAtEntryPoint,
		Sections:   []string{".text", ".rodata", ".vectors"},
	},
	{
		Name:       "sram",
		Start:      0x2000_0000,
		End:        0x2004_0000,
		Usage:      machine.UsageDataRW,
		Attributes: machine.AttrRAM | machine.AttrRandomAccessMemory | machine.AttrInternalMemory | machine.AttrConfiguredAtEntryPoint,
		Sections:   []string{".data", ".bss", ".stack"},
	},
}

func init() {
	target.Register(Name, func(cfg target.Config) (target.Platform, error) {
		return New(cfg)
	})
}

func New(cfg target.Config) (*Platform, error) {
	p := &Platform{
		cfg:    cfg,
		byEnc:  map[uint32]*machine.RegisterDescriptor{},
		byName: map[string]*machine.RegisterDescriptor{},
		mem:    machine.NewMemoryMap(),
	}

	p.buildRegisters()

	mem := cfg.Memory
	if len(mem) == 0 {
		mem = defaultMemory
	}

	for i := range mem {
		r := mem[i]

		if err := p.mem.Add(&r); err != nil {
			return nil, errors.Wrap(err, "memory map")
		}
	}

	p.cc = &AAPCS{p: p}

	return p, nil
}

func (p *Platform) buildRegisters() {
	l := &p.regs
	off := 0

	for i := uint32(0); i <= 12; i++ {
		machine.NewIntegerRegister(l, fmt.Sprintf("r%d", i), EncR0+i, off, machine.ClassNone)
		off++
	}

	machine.NewIntegerRegister(l, "sp", EncSP, off, machine.ClassStackPointer|machine.ClassAddress)
	machine.NewIntegerRegister(l, "lr", EncLR, off+1, machine.ClassLinkRegister|machine.ClassAddress)
	machine.NewIntegerRegister(l, "pc", EncPC, off+2, machine.ClassProgramCounter|machine.ClassAddress)
	off += 3

	if p.cfg.VFP {
		singles := make([]*machine.RegisterDescriptor, 32)

		for i := range singles {
			singles[i] = machine.NewSingleRegister(l, fmt.Sprintf("s%d", i), EncS0+uint32(i), off+i, i%2 == 1)
		}

		for i := 0; i < 16; i++ {
			d := machine.NewDoubleRegister(l, fmt.Sprintf("d%d", i), EncD0+uint32(i), off+2*i)

			d.AddInterference(singles[2*i])
			d.AddInterference(singles[2*i+1])
		}

		off += 32
	}

	machine.NewSystemRegister(l, "cpsr", EncCPSR, off, machine.ClassStatusRegister)

	for _, r := range p.regs {
		p.byEnc[r.Encoding] = r
		p.byName[r.Mnemonic] = r
	}
}

func (p *Platform) Name() string { return Name }

func (p *Platform) Registers() []*machine.RegisterDescriptor { return p.regs }

func (p *Platform) ScratchRegister() *machine.RegisterDescriptor { return p.byEnc[EncR12] }

func (p *Platform) RegisterForEncoding(enc uint32) *machine.RegisterDescriptor { return p.byEnc[enc] }

func (p *Platform) RegisterByMnemonic(name string) *machine.RegisterDescriptor { return p.byName[name] }

func (p *Platform) InstructionSet() target.InstructionSet { return isa{vfp: p.cfg.VFP} }

func (p *Platform) MemoryBlocks() *machine.MemoryMap { return p.mem }

func (p *Platform) MemoryRequirements(usage machine.MemoryUsage) machine.PlacementRequirements {
	req := machine.PlacementRequirements{
		Alignment: uint32(p.MemoryAlignment()),
		Usages:    []machine.MemoryUsage{usage},
	}

	if usage == machine.UsageVectorsTable {
		req.Alignment = 128
	}

	return req
}

func (p *Platform) MemoryAlignment() int { return 4 }

func (p *Platform) CostOfLoad() int  { return 2 }
func (p *Platform) CostOfStore() int { return 1 }

// Thumb-2 IT blocks take one condition and its inverse.
func (p *Platform) CanUseMultipleConditionCodes() bool { return false }

func (p *Platform) HasVFP() bool   { return p.cfg.VFP }
func (p *Platform) BigEndian() bool { return p.cfg.BigEndian }

func (p *Platform) CanFitInRegister(t ir.Type) bool {
	if t.IsFloat() && p.cfg.VFP {
		return t.Words() <= 2
	}

	return t.Words() <= 1
}

func (p *Platform) CallingConvention() target.CallingConvention { return p.cc }

func (p *Platform) ExpandCallsClosure(s closure.Sink) {
	for _, m := range p.cfg.RuntimeMethods {
		s.AddMethod(m)
	}
}

func (isa) Name() string   { return "Thumb-2" }
func (isa) Version() int   { return 7 }
func (i isa) HasVFP() bool { return i.vfp }
