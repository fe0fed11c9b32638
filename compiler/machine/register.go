package machine

import (
	"strings"

	"tlog.app/go/tlog/tlwire"
)

type (
	RegisterClass uint32

	PairState uint8

	// RegisterDescriptor is one physical storage location.
	// Descriptors are built once by a platform and shared by reference afterwards.
	RegisterDescriptor struct {
		Index         int
		Mnemonic      string
		Encoding      uint32
		StorageOffset int
		StorageSize   int // words

		PhysicalClass RegisterClass
		StorageCaps   RegisterClass
		ComputeCaps   RegisterClass

		interferes []*RegisterDescriptor
	}
)

const (
	ClassNone RegisterClass = 0

	ClassInteger RegisterClass = 1 << iota
	ClassAddress
	ClassSinglePrecision
	ClassDoublePrecision
	ClassDoublePrecisionLow
	ClassDoublePrecisionHigh
	ClassSystem
	ClassStatusRegister
	ClassProgramCounter
	ClassStackPointer
	ClassLinkRegister
)

const (
	PairNone PairState = iota
	PairLow
	PairHigh
)

var classNames = []string{
	"integer", "address", "single", "double", "double_low", "double_high",
	"system", "status", "pc", "sp", "lr",
}

func NewSystemRegister(list *[]*RegisterDescriptor, mnemonic string, encoding uint32, offset int, class RegisterClass) *RegisterDescriptor {
	return add(list, &RegisterDescriptor{
		Mnemonic:      mnemonic,
		Encoding:      encoding,
		StorageOffset: offset,
		StorageSize:   1,
		PhysicalClass: ClassSystem | class,
		StorageCaps:   ClassSystem | class,
		ComputeCaps:   ClassNone,
	})
}

func NewIntegerRegister(list *[]*RegisterDescriptor, mnemonic string, encoding uint32, offset int, class RegisterClass) *RegisterDescriptor {
	return add(list, &RegisterDescriptor{
		Mnemonic:      mnemonic,
		Encoding:      encoding,
		StorageOffset: offset,
		StorageSize:   1,
		PhysicalClass: ClassInteger | class,
		StorageCaps:   ClassInteger | ClassAddress | ClassSinglePrecision | ClassDoublePrecisionLow | ClassDoublePrecisionHigh,
		ComputeCaps:   ClassInteger | ClassAddress,
	})
}

// NewSingleRegister describes a 32-bit floating point register.
// high tells which half of the overlapping double register it is.
func NewSingleRegister(list *[]*RegisterDescriptor, mnemonic string, encoding uint32, offset int, high bool) *RegisterDescriptor {
	half := ClassDoublePrecisionLow
	if high {
		half = ClassDoublePrecisionHigh
	}

	return add(list, &RegisterDescriptor{
		Mnemonic:      mnemonic,
		Encoding:      encoding,
		StorageOffset: offset,
		StorageSize:   1,
		PhysicalClass: ClassSinglePrecision | half,
		StorageCaps:   ClassInteger | ClassSinglePrecision | half,
		ComputeCaps:   ClassSinglePrecision,
	})
}

func NewDoubleRegister(list *[]*RegisterDescriptor, mnemonic string, encoding uint32, offset int) *RegisterDescriptor {
	return add(list, &RegisterDescriptor{
		Mnemonic:      mnemonic,
		Encoding:      encoding,
		StorageOffset: offset,
		StorageSize:   2,
		PhysicalClass: ClassDoublePrecision,
		StorageCaps:   ClassDoublePrecision,
		ComputeCaps:   ClassDoublePrecision,
	})
}

func add(list *[]*RegisterDescriptor, r *RegisterDescriptor) *RegisterDescriptor {
	r.Index = len(*list)
	*list = append(*list, r)

	return r
}

// AddInterference marks both registers as unable to be live at the same time.
func (r *RegisterDescriptor) AddInterference(x *RegisterDescriptor) {
	if r == x || r.InterferesWith(x) {
		return
	}

	r.interferes = append(r.interferes, x)
	x.interferes = append(x.interferes, r)
}

func (r *RegisterDescriptor) InterferesWith(x *RegisterDescriptor) bool {
	for _, y := range r.interferes {
		if y == x {
			return true
		}
	}

	return false
}

func (r *RegisterDescriptor) Interference() []*RegisterDescriptor { return r.interferes }

func (r *RegisterDescriptor) CanStore(c RegisterClass) bool {
	return r.StorageCaps&c == c
}

func (r *RegisterDescriptor) CanCompute(c RegisterClass) bool {
	return r.ComputeCaps&c == c
}

func (r *RegisterDescriptor) Is(c RegisterClass) bool {
	return r.PhysicalClass&c != 0
}

func (r *RegisterDescriptor) PairState() PairState {
	switch {
	case r.PhysicalClass&ClassDoublePrecisionLow != 0:
		return PairLow
	case r.PhysicalClass&ClassDoublePrecisionHigh != 0:
		return PairHigh
	default:
		return PairNone
	}
}

func (r *RegisterDescriptor) String() string {
	if r == nil {
		return "<nil>"
	}

	return r.Mnemonic
}

func (r *RegisterDescriptor) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	if r == nil {
		return e.AppendNil(b)
	}

	return e.AppendString(b, r.Mnemonic)
}

func (c RegisterClass) String() string {
	if c == ClassNone {
		return "none"
	}

	var b strings.Builder

	for i, n := range classNames {
		if c&(1<<(i+1)) == 0 {
			continue
		}

		if b.Len() != 0 {
			b.WriteByte('|')
		}

		b.WriteString(n)
	}

	return b.String()
}
