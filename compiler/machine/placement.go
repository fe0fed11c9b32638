package machine

type (
	MemoryUsage uint32

	MemoryAttributes uint32

	PlacementRequirements struct {
		Alignment       uint32
		AlignmentOffset uint32

		// nil slices are unconstrained
		Sections   []string
		Usages     []MemoryUsage
		Attributes []MemoryAttributes
	}
)

const (
	UsageCode MemoryUsage = 1 << iota
	UsageDataRO
	UsageDataRW
	UsageBootstrap
	UsageVectorsTable
	UsageRelocation
	UsageUndefined
)

const (
	AttrRAM MemoryAttributes = 1 << iota
	AttrFLASH
	AttrRandomAccessMemory
	AttrInternalMemory
	AttrExternalMemory
	AttrConfiguredAtEntryPoint
	AttrLoadedAtEntryPoint
	AttrAllocated
	AttrUnpaged
)

var (
	usageNames = map[string]MemoryUsage{
		"code":          UsageCode,
		"data_ro":       UsageDataRO,
		"data_rw":       UsageDataRW,
		"bootstrap":     UsageBootstrap,
		"vectors_table": UsageVectorsTable,
		"relocation":    UsageRelocation,
		"undefined":     UsageUndefined,
	}

	attrNames = map[string]MemoryAttributes{
		"ram":                      AttrRAM,
		"flash":                    AttrFLASH,
		"random_access":            AttrRandomAccessMemory,
		"internal":                 AttrInternalMemory,
		"external":                 AttrExternalMemory,
		"configured_at_entrypoint": AttrConfiguredAtEntryPoint,
		"loaded_at_entrypoint":     AttrLoadedAtEntryPoint,
		"allocated":                AttrAllocated,
		"unpaged":                  AttrUnpaged,
	}
)

func ParseUsage(s string) (MemoryUsage, bool) {
	u, ok := usageNames[s]
	return u, ok
}

func ParseAttributes(s string) (MemoryAttributes, bool) {
	a, ok := attrNames[s]
	return a, ok
}

// IsCompatible reports whether two objects may share one placement decision.
func (r *PlacementRequirements) IsCompatible(x *PlacementRequirements) bool {
	if r == x {
		return true
	}

	if r == nil || x == nil {
		return false
	}

	if r.Alignment != x.Alignment || r.AlignmentOffset != x.AlignmentOffset {
		return false
	}

	return sameSet(r.Sections, x.Sections) &&
		sameSet(r.Usages, x.Usages) &&
		sameSet(r.Attributes, x.Attributes)
}

// Satisfies reports whether a memory range can hold an object with the requirements.
func (r *PlacementRequirements) Satisfies(m *MemoryRange) bool {
	if r == nil {
		return true
	}

	if r.Alignment != 0 && m.Size() < r.Alignment+r.AlignmentOffset {
		return false
	}

	if r.Usages != nil && !anyOf(r.Usages, func(u MemoryUsage) bool { return m.Usage&u == u }) {
		return false
	}

	if r.Attributes != nil && !anyOf(r.Attributes, func(a MemoryAttributes) bool { return m.Attributes&a == a }) {
		return false
	}

	if r.Sections != nil && !anyOf(r.Sections, func(s string) bool { return contains(m.Sections, s) }) {
		return false
	}

	return true
}

func sameSet[T comparable](a, b []T) bool {
	if (a == nil) != (b == nil) {
		return false
	}

	for _, x := range a {
		if !contains(b, x) {
			return false
		}
	}

	for _, x := range b {
		if !contains(a, x) {
			return false
		}
	}

	return true
}

func contains[T comparable](s []T, x T) bool {
	for _, y := range s {
		if y == x {
			return true
		}
	}

	return false
}

func anyOf[T any](s []T, f func(T) bool) bool {
	for _, x := range s {
		if f(x) {
			return true
		}
	}

	return false
}
