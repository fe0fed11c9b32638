package ir

type (
	Condition uint8

	Unconditional struct {
		OpBase
		Target BlockID
	}

	// BinaryConditional branches to Taken when its argument is not zero.
	BinaryConditional struct {
		OpBase
		Taken    BlockID
		NotTaken BlockID
	}

	CompareConditional struct {
		OpBase
		Cond     Condition
		Signed   bool
		Taken    BlockID
		NotTaken BlockID
	}

	// MultiWay selects Cases[index]; any other index goes to NotTaken.
	MultiWay struct {
		OpBase
		Cases    []BlockID
		NotTaken BlockID
	}

	Return struct {
		OpBase
	}

	// Leave exits a protected region to Target.
	Leave struct {
		OpBase
		Target BlockID
	}

	Rethrow struct {
		OpBase
	}

	ResumeUnwind struct {
		OpBase
	}

	// Dead marks the end of a block control never reaches.
	Dead struct {
		OpBase
	}
)

const (
	EQ Condition = iota
	NE
	LT
	LE
	GT
	GE
)

const controlCaps = pure | DoesNotThrow

func NewUnconditional(target BlockID) *Unconditional {
	return &Unconditional{OpBase: OpBase{Caps: controlCaps}, Target: target}
}

func NewBinaryConditional(test ExprID, taken, notTaken BlockID) *BinaryConditional {
	return &BinaryConditional{
		OpBase:   OpBase{Args: []ExprID{test}, Caps: controlCaps},
		Taken:    taken,
		NotTaken: notTaken,
	}
}

func NewCompareConditional(cond Condition, signed bool, l, r ExprID, taken, notTaken BlockID) *CompareConditional {
	caps := controlCaps | IsNonCommutative
	if cond == EQ || cond == NE {
		caps = controlCaps | IsCommutative
	}

	return &CompareConditional{
		OpBase:   OpBase{Args: []ExprID{l, r}, Caps: caps},
		Cond:     cond,
		Signed:   signed,
		Taken:    taken,
		NotTaken: notTaken,
	}
}

func NewMultiWay(index ExprID, targets []BlockID, notTaken BlockID) *MultiWay {
	return &MultiWay{
		OpBase:   OpBase{Args: []ExprID{index}, Caps: controlCaps},
		Cases:    targets,
		NotTaken: notTaken,
	}
}

func NewReturn(vals ...ExprID) *Return {
	return &Return{OpBase: OpBase{Args: vals, Caps: controlCaps}}
}

func NewLeave(target BlockID) *Leave {
	return &Leave{OpBase: OpBase{Caps: controlCaps}, Target: target}
}

func NewRethrow() *Rethrow {
	return &Rethrow{OpBase: OpBase{Caps: pure | MayThrow}}
}

func NewResumeUnwind(exc ExprID) *ResumeUnwind {
	return &ResumeUnwind{OpBase: OpBase{Args: []ExprID{exc}, Caps: pure | MayThrow}}
}

func NewDead() *Dead {
	return &Dead{OpBase: OpBase{Caps: controlCaps}}
}

func (o *Unconditional) Targets() []BlockID      { return []BlockID{o.Target} }
func (o *BinaryConditional) Targets() []BlockID  { return []BlockID{o.NotTaken, o.Taken} }
func (o *CompareConditional) Targets() []BlockID { return []BlockID{o.NotTaken, o.Taken} }
func (o *Leave) Targets() []BlockID              { return []BlockID{o.Target} }
func (o *Return) Targets() []BlockID             { return nil }
func (o *Rethrow) Targets() []BlockID            { return nil }
func (o *ResumeUnwind) Targets() []BlockID       { return nil }
func (o *Dead) Targets() []BlockID               { return nil }

func (o *MultiWay) Targets() []BlockID {
	r := make([]BlockID, 0, len(o.Cases)+1)
	r = append(r, o.Cases...)

	return append(r, o.NotTaken)
}

func (o *Unconditional) SubstituteTarget(old, new BlockID) bool {
	return o.subst(&o.Target, old, new)
}

func (o *BinaryConditional) SubstituteTarget(old, new BlockID) bool {
	a := o.subst(&o.NotTaken, old, new)
	b := o.subst(&o.Taken, old, new)

	return a || b
}

func (o *CompareConditional) SubstituteTarget(old, new BlockID) bool {
	a := o.subst(&o.NotTaken, old, new)
	b := o.subst(&o.Taken, old, new)

	return a || b
}

func (o *MultiWay) SubstituteTarget(old, new BlockID) bool {
	changed := o.subst(&o.NotTaken, old, new)
	copied := false

	for i, t := range o.Cases {
		if t != old {
			continue
		}

		if !copied {
			o.Cases = append([]BlockID(nil), o.Cases...)
			copied = true
		}

		o.Cases[i] = new
		o.bump()
		changed = true
	}

	return changed
}

func (o *Leave) SubstituteTarget(old, new BlockID) bool {
	return o.subst(&o.Target, old, new)
}

func (o *Return) SubstituteTarget(old, new BlockID) bool       { return false }
func (o *Rethrow) SubstituteTarget(old, new BlockID) bool      { return false }
func (o *ResumeUnwind) SubstituteTarget(old, new BlockID) bool { return false }
func (o *Dead) SubstituteTarget(old, new BlockID) bool         { return false }

func (o *OpBase) subst(p *BlockID, old, new BlockID) bool {
	if *p != old {
		return false
	}

	*p = new
	o.bump()

	return true
}

func (o *Unconditional) UpdateSuccessorInformation()      { o.linkAll(o.Target) }
func (o *BinaryConditional) UpdateSuccessorInformation()  { o.linkAll(o.NotTaken, o.Taken) }
func (o *CompareConditional) UpdateSuccessorInformation() { o.linkAll(o.NotTaken, o.Taken) }
func (o *MultiWay) UpdateSuccessorInformation()           { o.linkAll(o.Targets()...) }
func (o *Leave) UpdateSuccessorInformation()              { o.linkAll(o.Target) }
func (o *Return) UpdateSuccessorInformation()             { o.linkAll() }
func (o *Rethrow) UpdateSuccessorInformation()            { o.linkAll() }
func (o *ResumeUnwind) UpdateSuccessorInformation()       { o.linkAll() }
func (o *Dead) UpdateSuccessorInformation()               { o.linkAll() }

func (o *OpBase) linkAll(ts ...BlockID) {
	if o.block == nil {
		panic("control operator is not attached to a block")
	}

	for _, t := range ts {
		o.block.LinkToNormal(t)
	}
}

func (o *Unconditional) ShouldIncludeInScheduling(next *BasicBlock) bool {
	return fallsThrough(o.Target, next)
}

func (o *BinaryConditional) ShouldIncludeInScheduling(next *BasicBlock) bool {
	return fallsThrough(o.NotTaken, next)
}

func (o *CompareConditional) ShouldIncludeInScheduling(next *BasicBlock) bool {
	return fallsThrough(o.NotTaken, next)
}

func (o *MultiWay) ShouldIncludeInScheduling(next *BasicBlock) bool {
	return fallsThrough(o.NotTaken, next)
}

func (o *Leave) ShouldIncludeInScheduling(next *BasicBlock) bool {
	return fallsThrough(o.Target, next)
}

func (o *Return) ShouldIncludeInScheduling(next *BasicBlock) bool       { return false }
func (o *Rethrow) ShouldIncludeInScheduling(next *BasicBlock) bool      { return false }
func (o *ResumeUnwind) ShouldIncludeInScheduling(next *BasicBlock) bool { return false }
func (o *Dead) ShouldIncludeInScheduling(next *BasicBlock) bool         { return false }

func fallsThrough(target BlockID, next *BasicBlock) bool {
	return next != nil && next.ID == target && next.Kind != BlockHandler
}

func (o *Unconditional) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	t.Block(&o.Target)
}

func (o *BinaryConditional) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	t.Block(&o.Taken)
	t.Block(&o.NotTaken)
}

func (o *CompareConditional) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	TransformEnum(t, &o.Cond)
	t.Bool(&o.Signed)
	t.Block(&o.Taken)
	t.Block(&o.NotTaken)
}

func (o *MultiWay) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	TransformSlice(t, &o.Cases, Transformer.Block)
	t.Block(&o.NotTaken)
}

func (o *Leave) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
	t.Block(&o.Target)
}

func (o *Return) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
}

func (o *Rethrow) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
}

func (o *ResumeUnwind) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
}

func (o *Dead) ApplyTransformation(t Transformer) {
	t.Push(o)
	defer t.Pop()

	o.OpBase.ApplyTransformation(t)
}

func (c Condition) Invert() Condition {
	switch c {
	case EQ:
		return NE
	case NE:
		return EQ
	case LT:
		return GE
	case GE:
		return LT
	case GT:
		return LE
	case LE:
		return GT
	}

	panic(c)
}

func (c Condition) String() string {
	switch c {
	case EQ:
		return "EQ"
	case NE:
		return "NE"
	case LT:
		return "LT"
	case LE:
		return "LE"
	case GT:
		return "GT"
	case GE:
		return "GE"
	default:
		return "cond?"
	}
}
