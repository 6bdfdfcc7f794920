package layout

import (
	"math/bits"

	"fortio.org/safecast"

	"github.com/wippyai/native-abi/errors"
)

// MaxSize is the largest size or alignment, in bytes, a layout may have.
const MaxSize int64 = 1 << 62

// AlignUp rounds offset up to a multiple of align.
func AlignUp(offset, align int64) int64 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// CStruct returns a struct laid out by C rules: each member is placed at the
// next offset aligned to it, and the total size is rounded up to the largest
// member alignment. The inserted gaps are explicit Padding members.
func CStruct(members ...Layout) *Group {
	if len(members) == 0 {
		return Struct()
	}

	laid := make([]Layout, 0, len(members))
	maxAlign := int64(1)
	offset := int64(0)

	for _, m := range members {
		aligned := AlignUp(offset, m.Align())
		if aligned > offset {
			laid = append(laid, PaddingOf(aligned-offset))
		}
		laid = append(laid, m)

		if m.Align() > maxAlign {
			maxAlign = m.Align()
		}

		offset = aligned + m.Size()
	}

	if total := AlignUp(offset, maxAlign); total > offset {
		laid = append(laid, PaddingOf(total-offset))
	}

	return Struct(laid...)
}

// CUnion returns a union whose size is rounded up to its alignment.
func CUnion(members ...Layout) *Group {
	u := Union(members...)
	if total := AlignUp(u.Size(), u.Align()); total > u.Size() {
		return Union(append(append([]Layout(nil), members...), PaddingOf(total))...)
	}
	return u
}

// Check recomputes the sizes of l with overflow checks. Layouts built from
// untrusted counts must pass it before their Size is used for arithmetic.
func Check(phase errors.Phase, l Layout) error {
	if _, err := checkedSize(l); err != nil {
		name := "<nil>"
		if l != nil {
			name = l.String()
		}
		return errors.Unsupported(phase, name, err.Error())
	}
	return nil
}

type sizeError string

func (e sizeError) Error() string { return string(e) }

func checkedSize(l Layout) (int64, error) {
	switch v := l.(type) {
	case Value:
		if err := checkAlign(v.align); err != nil {
			return 0, err
		}
		if v.target != nil {
			if _, err := checkedSize(v.target); err != nil {
				return 0, err
			}
		}
		return boundSize(v.size)
	case Padding:
		return boundSize(v.size)
	case Sequence:
		if v.count < 0 {
			return 0, sizeError("negative element count")
		}
		elem, err := checkedSize(v.elem)
		if err != nil {
			return 0, err
		}
		if err := checkAlign(v.elem.Align()); err != nil {
			return 0, err
		}
		return mulSize(v.count, elem)
	case *Group:
		if v == nil {
			return 0, sizeError("nil group")
		}
		if err := checkAlign(v.align); err != nil {
			return 0, err
		}
		var total int64
		for _, m := range v.members {
			n, err := checkedSize(m)
			if err != nil {
				return 0, err
			}
			switch {
			case v.kind == KindStruct:
				if total, err = addSize(total, n); err != nil {
					return 0, err
				}
			case n > total:
				total = n
			}
		}
		return total, nil
	}
	return 0, sizeError("nil layout")
}

func boundSize(n int64) (int64, error) {
	if n < 0 {
		return 0, sizeError("negative size")
	}
	if n > MaxSize {
		return 0, sizeError("size overflows")
	}
	return n, nil
}

func checkAlign(align int64) error {
	if align <= 0 || align&(align-1) != 0 || align > MaxSize {
		return sizeError("alignment is not a power of two")
	}
	return nil
}

func addSize(a, b int64) (int64, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, sizeError("size overflows")
	}
	n, err := safecast.Conv[int64](sum)
	if err != nil {
		return 0, sizeError("size overflows")
	}
	return boundSize(n)
}

func mulSize(a, b int64) (int64, error) {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 {
		return 0, sizeError("size overflows")
	}
	n, err := safecast.Conv[int64](lo)
	if err != nil {
		return 0, sizeError("size overflows")
	}
	return boundSize(n)
}
