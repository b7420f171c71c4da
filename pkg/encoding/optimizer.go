package encoding

import (
	"math"
	"sort"
	"unicode/utf8"

	"github.com/ArtifactDB/alabaster-go/pkg/errors"
	"github.com/ArtifactDB/alabaster-go/pkg/metrics"
)

// nativeMissingInteger is the conventional missing marker of the interchange
// format's 32-bit signed integers, used when the placeholder search is
// exhausted at the final ladder width.
const nativeMissingInteger = math.MinInt32

type intRung struct {
	container Container
	min, max  int64
}

// intLadder is ordered smallest container first.
var intLadder = []intRung{
	{Uint8, 0, math.MaxUint8},
	{Int8, math.MinInt8, math.MaxInt8},
	{Uint16, 0, math.MaxUint16},
	{Int16, math.MinInt16, math.MaxInt16},
	{Uint32, 0, math.MaxUint32},
	{Int32, math.MinInt32, math.MaxInt32},
}

func isMissing(missing []bool, i int) bool {
	return i < len(missing) && missing[i]
}

// chooseIntegerRung walks the ladder for the observed [min, max] interval.
// It returns ok=false when every fitting rung's placeholder candidates are
// taken, leaving the caller to apply its own fallback.
func chooseIntegerRung(min, max int64, observed map[int64]struct{}, hasMissing bool) (Container, *int64, bool) {
	for _, rung := range intLadder {
		if min < rung.min || max > rung.max {
			continue
		}
		if !hasMissing {
			return rung.container, nil, true
		}
		// Prefer the type's maximum, then its minimum, then zero.
		for _, candidate := range []int64{rung.max, rung.min, 0} {
			if _, taken := observed[candidate]; !taken {
				placeholder := candidate
				return rung.container, &placeholder, true
			}
		}
	}
	return 0, nil, false
}

// ChooseIntegerStorage scans an integer buffer once and returns the smallest
// container whose range covers [min, max] of the non-missing values. When
// missing values exist, the placeholder is a representable value not present
// in the data; if the search is exhausted at the final 32-bit signed width,
// the format's native missing marker is used with no further search.
//
// Values outside the 32-bit ladder are not representable and yield an
// encoding error.
func ChooseIntegerStorage(values []int64, missing []bool) (IntegerEncoding, error) {
	metrics.OptimizerRuns.WithLabelValues("integer").Inc()

	var (
		min        int64 = 0
		max        int64 = 0
		seen       bool
		hasMissing bool
	)
	observed := make(map[int64]struct{}, len(values))

	for i, v := range values {
		if isMissing(missing, i) {
			hasMissing = true
			continue
		}
		if !seen || v < min {
			min = v
		}
		if !seen || v > max {
			max = v
		}
		seen = true
		observed[v] = struct{}{}
	}

	if min < math.MinInt32 || max > math.MaxUint32 {
		return IntegerEncoding{}, errors.Newf(errors.ErrorTypeEncoding,
			"integer range [%d, %d] exceeds 32-bit storage", min, max)
	}

	if container, placeholder, ok := chooseIntegerRung(min, max, observed, hasMissing); ok {
		return IntegerEncoding{
			Type:        StorageType{Container: container},
			Placeholder: placeholder,
		}, nil
	}

	// Final, unescalatable width: fall back to the native missing marker.
	placeholder := int64(nativeMissingInteger)
	return IntegerEncoding{
		Type:        StorageType{Container: Int32},
		Placeholder: &placeholder,
	}, nil
}

// ChooseFloatStorage scans a double buffer and first tests whether every
// finite value is integral and within 32-bit range; if so it reuses the
// integer width ladder before falling back to double precision. At double
// precision the placeholder search tries NaN (when no actual NaN values
// exist), the infinities, the extreme finite values, and finally a
// representable midpoint between two adjacent observed values.
func ChooseFloatStorage(values []float64, missing []bool) (FloatEncoding, error) {
	metrics.OptimizerRuns.WithLabelValues("float").Inc()

	var (
		hasMissing bool
		hasNaN     bool
		hasPosInf  bool
		hasNegInf  bool
		integral   = true
	)
	observed := make(map[float64]struct{}, len(values))
	intObserved := make(map[int64]struct{}, len(values))
	var (
		intMin, intMax int64
		finiteSeen     bool
	)

	for i, v := range values {
		if isMissing(missing, i) {
			hasMissing = true
			continue
		}
		switch {
		case math.IsNaN(v):
			hasNaN = true
			integral = false
		case math.IsInf(v, 1):
			hasPosInf = true
			integral = false
			observed[v] = struct{}{}
		case math.IsInf(v, -1):
			hasNegInf = true
			integral = false
			observed[v] = struct{}{}
		default:
			observed[v] = struct{}{}
			if integral {
				if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxUint32 {
					integral = false
					break
				}
				n := int64(v)
				intObserved[n] = struct{}{}
				if !finiteSeen || n < intMin {
					intMin = n
				}
				if !finiteSeen || n > intMax {
					intMax = n
				}
				finiteSeen = true
			}
		}
	}

	if integral {
		if container, placeholder, ok := chooseIntegerRung(intMin, intMax, intObserved, hasMissing); ok {
			enc := FloatEncoding{Type: StorageType{Container: container}}
			if placeholder != nil {
				p := float64(*placeholder)
				enc.Placeholder = &p
			}
			return enc, nil
		}
		// Ladder exhausted: widen to double precision instead of the
		// integer NA fallback.
	}

	enc := FloatEncoding{Type: StorageType{Container: Float64}}
	if !hasMissing {
		return enc, nil
	}

	candidates := []struct {
		value float64
		free  bool
	}{
		{math.NaN(), !hasNaN},
		{math.Inf(1), !hasPosInf},
		{math.Inf(-1), !hasNegInf},
		{-math.MaxFloat64, !contains(observed, -math.MaxFloat64)},
		{math.MaxFloat64, !contains(observed, math.MaxFloat64)},
	}
	for _, c := range candidates {
		if c.free {
			placeholder := c.value
			enc.Placeholder = &placeholder
			return enc, nil
		}
	}

	// Everything reserved is taken: bisect the sorted unique finite values
	// for a representable midpoint. Some unused midpoint always exists for
	// a finite set of distinct doubles.
	finite := make([]float64, 0, len(observed))
	for v := range observed {
		if !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	sort.Float64s(finite)
	for i := 0; i+1 < len(finite); i++ {
		lo, hi := finite[i], finite[i+1]
		mid := lo/2 + hi/2
		if mid > lo && mid < hi {
			enc.Placeholder = &mid
			return enc, nil
		}
	}

	return FloatEncoding{}, errors.New(errors.ErrorTypeEncoding, "exhausted placeholder search for double storage")
}

func contains(observed map[float64]struct{}, v float64) bool {
	_, ok := observed[v]
	return ok
}

// validText checks a value's bytes against its declared character set.
func validText(v string, charset CharSet) bool {
	if charset == CharSetASCII {
		for i := 0; i < len(v); i++ {
			if v[i] >= 0x80 {
				return false
			}
		}
		return true
	}
	return utf8.ValidString(v)
}

// ChooseStringStorage computes the fixed byte width for a text buffer under
// the declared character set. When missing values exist, the placeholder is
// "NA" with underscores prepended until it no longer collides with observed
// data; the buffer width is the maximum of the longest observed value and
// the placeholder length. Values whose bytes do not match the declared
// character set yield an encoding error.
func ChooseStringStorage(values []string, missing []bool, charset CharSet) (StringEncoding, error) {
	metrics.OptimizerRuns.WithLabelValues("string").Inc()

	if charset != CharSetASCII && charset != CharSetUTF8 {
		return StringEncoding{}, errors.Newf(errors.ErrorTypeEncoding,
			"unsupported character set '%s' for fixed-width text storage", string(charset))
	}

	var (
		maxLen     int
		hasMissing bool
	)
	observed := make(map[string]struct{}, len(values))

	for i, v := range values {
		if isMissing(missing, i) {
			hasMissing = true
			continue
		}
		if !validText(v, charset) {
			return StringEncoding{}, errors.Newf(errors.ErrorTypeEncoding,
				"value at index %d is not valid %s text", i, string(charset))
		}
		if len(v) > maxLen {
			maxLen = len(v)
		}
		observed[v] = struct{}{}
	}

	width := maxLen
	var placeholder *string
	if hasMissing {
		candidate := "NA"
		for {
			if _, taken := observed[candidate]; !taken {
				break
			}
			candidate = "_" + candidate
		}
		if len(candidate) > width {
			width = len(candidate)
		}
		placeholder = &candidate
	}
	if width < 1 {
		width = 1
	}

	return StringEncoding{
		Type: StorageType{
			Container: FixedString,
			Width:     width,
			CharSet:   charset,
		},
		Placeholder: placeholder,
	}, nil
}

// ChooseBooleanStorage encodes booleans as signed 8-bit 0/1, reserving -1
// for missing values.
func ChooseBooleanStorage(values []bool, missing []bool) BooleanEncoding {
	metrics.OptimizerRuns.WithLabelValues("boolean").Inc()

	enc := BooleanEncoding{Type: StorageType{Container: Int8}}
	for i := range values {
		if isMissing(missing, i) {
			placeholder := int8(-1)
			enc.Placeholder = &placeholder
			break
		}
	}
	return enc
}
