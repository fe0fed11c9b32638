package ir

type (
	TypeClass uint8

	// Type is the opaque key the external type system hands out.
	// Only the facts needed for storage and class decisions are kept.
	Type struct {
		Name   string
		Class  TypeClass
		Size   int // bytes
		Signed bool
	}
)

const (
	ClassVoid TypeClass = iota
	ClassInteger
	ClassFloat
	ClassPointer
	ClassObject
	ClassValueType
)

var (
	Void    = Type{Name: "void"}
	Bool    = Type{Name: "bool", Class: ClassInteger, Size: 1}
	Int8    = Type{Name: "int8", Class: ClassInteger, Size: 1, Signed: true}
	Uint8   = Type{Name: "uint8", Class: ClassInteger, Size: 1}
	Int16   = Type{Name: "int16", Class: ClassInteger, Size: 2, Signed: true}
	Uint16  = Type{Name: "uint16", Class: ClassInteger, Size: 2}
	Int32   = Type{Name: "int32", Class: ClassInteger, Size: 4, Signed: true}
	Uint32  = Type{Name: "uint32", Class: ClassInteger, Size: 4}
	Int64   = Type{Name: "int64", Class: ClassInteger, Size: 8, Signed: true}
	Uint64  = Type{Name: "uint64", Class: ClassInteger, Size: 8}
	Float32 = Type{Name: "float32", Class: ClassFloat, Size: 4}
	Float64 = Type{Name: "float64", Class: ClassFloat, Size: 8}
	Pointer = Type{Name: "pointer", Class: ClassPointer, Size: 4}
	Object  = Type{Name: "object", Class: ClassObject, Size: 4}
)

func (t Type) Words() int { return (t.Size + 3) / 4 }

func (t Type) IsVoid() bool    { return t.Class == ClassVoid }
func (t Type) IsInteger() bool { return t.Class == ClassInteger }
func (t Type) IsFloat() bool   { return t.Class == ClassFloat }
func (t Type) IsPointer() bool { return t.Class == ClassPointer || t.Class == ClassObject }

func (t Type) String() string {
	if t.Name == "" {
		return "?"
	}

	return t.Name
}

func (t *Type) ApplyTransformation(tr Transformer) {
	tr.String(&t.Name)
	TransformEnum(tr, &t.Class)
	tr.Int(&t.Size)
	tr.Bool(&t.Signed)
}

func (c TypeClass) String() string {
	switch c {
	case ClassVoid:
		return "void"
	case ClassInteger:
		return "integer"
	case ClassFloat:
		return "float"
	case ClassPointer:
		return "pointer"
	case ClassObject:
		return "object"
	case ClassValueType:
		return "valuetype"
	default:
		return "unknown"
	}
}
