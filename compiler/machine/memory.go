package machine

import (
	"github.com/google/btree"
	"tlog.app/go/errors"
)

type (
	MemoryRange struct {
		Name       string
		Start      uint32
		End        uint32 // exclusive
		Usage      MemoryUsage
		Attributes MemoryAttributes
		Sections   []string
	}

	// MemoryMap is an address ordered set of non overlapping ranges.
	MemoryMap struct {
		t *btree.BTreeG[*MemoryRange]
	}
)

func NewMemoryMap() *MemoryMap {
	return &MemoryMap{
		t: btree.NewG(8, func(a, b *MemoryRange) bool {
			return a.Start < b.Start
		}),
	}
}

func (m *MemoryRange) Size() uint32 { return m.End - m.Start }

func (m *MemoryRange) Contains(addr uint32) bool {
	return addr >= m.Start && addr < m.End
}

func (mm *MemoryMap) Add(r *MemoryRange) error {
	if r.End <= r.Start {
		return errors.New("memory range %v: empty range %#x-%#x", r.Name, r.Start, r.End)
	}

	var err error

	check := func(x *MemoryRange) bool {
		if x.Start < r.End && r.Start < x.End {
			err = errors.New("memory range %v overlaps %v", r.Name, x.Name)
			return false
		}

		return true
	}

	mm.t.DescendLessOrEqual(r, func(x *MemoryRange) bool {
		check(x)
		return false
	})

	if err == nil {
		mm.t.AscendGreaterOrEqual(r, func(x *MemoryRange) bool {
			if x.Start >= r.End {
				return false
			}

			return check(x)
		})
	}

	if err != nil {
		return err
	}

	mm.t.ReplaceOrInsert(r)

	return nil
}

func (mm *MemoryMap) Find(addr uint32) *MemoryRange {
	var res *MemoryRange

	mm.t.DescendLessOrEqual(&MemoryRange{Start: addr}, func(x *MemoryRange) bool {
		if x.Contains(addr) {
			res = x
		}

		return false
	})

	return res
}

// Select returns ranges able to hold an object with req, in address order.
func (mm *MemoryMap) Select(req *PlacementRequirements) []*MemoryRange {
	var res []*MemoryRange

	mm.t.Ascend(func(x *MemoryRange) bool {
		if req.Satisfies(x) {
			res = append(res, x)
		}

		return true
	})

	return res
}

func (mm *MemoryMap) Ranges() []*MemoryRange {
	res := make([]*MemoryRange, 0, mm.t.Len())

	mm.t.Ascend(func(x *MemoryRange) bool {
		res = append(res, x)
		return true
	})

	return res
}

func (mm *MemoryMap) Len() int { return mm.t.Len() }
