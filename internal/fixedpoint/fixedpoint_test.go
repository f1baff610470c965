package fixedpoint

import (
	"math"
	"testing"
)

func TestMulDiv(t *testing.T) {
	a := FromFloat64(2.5)
	b := FromFloat64(4.0)
	got := ToFloat64(Mul(a, b))
	if math.Abs(got-10.0) > 1e-3 {
		t.Errorf("Mul(2.5,4.0) = %f, want ~10.0", got)
	}

	gotDiv := ToFloat64(Div(a, b))
	if math.Abs(gotDiv-0.625) > 1e-3 {
		t.Errorf("Div(2.5,4.0) = %f, want ~0.625", gotDiv)
	}
}

func TestDivByZero(t *testing.T) {
	if Div(FromInt(5), 0) != 0 {
		t.Error("Div by zero must return 0, not fault")
	}
}

func TestSqrt(t *testing.T) {
	cases := []float64{0.25, 1.0, 2.0, 9.0, 100.0, 0.0001}
	for _, c := range cases {
		got := ToFloat64(Sqrt(FromFloat64(c)))
		want := math.Sqrt(c)
		if math.Abs(got-want) > 0.01*want+1e-3 {
			t.Errorf("Sqrt(%f) = %f, want ~%f", c, got, want)
		}
	}
}

func TestSqrtNegative(t *testing.T) {
	if Sqrt(FromFloat64(-5)) != 0 {
		t.Error("Sqrt of negative must clamp to 0")
	}
}

// TestExpRelativeError checks the invariant from §8: for |x|<=8,
// |exp_fx(x) - exp(x)| / exp(x) < 0.01.
func TestExpRelativeError(t *testing.T) {
	for _, f := range []float64{-8, -4, -1, 0, 1, 2, 4, 8} {
		got := ToFloat64(Exp(FromFloat64(f)))
		want := math.Exp(f)
		relErr := math.Abs(got-want) / want
		if relErr >= 0.01 {
			t.Errorf("Exp(%f) relative error %f >= 0.01 (got %f want %f)", f, relErr, got, want)
		}
	}
}

func TestSinCosIdentity(t *testing.T) {
	for _, f := range []float64{0, 0.5, 1.0, 2.0, 3.0, -1.5} {
		s := Sin(FromFloat64(f))
		c := Cos(FromFloat64(f))
		sum := ToFloat64(Mul(s, s)) + ToFloat64(Mul(c, c))
		if math.Abs(sum-1.0) > 1e-3 {
			t.Errorf("sin^2+cos^2 at %f = %f, want ~1.0", f, sum)
		}
	}
}

func TestRopeTableUnitCircle(t *testing.T) {
	var rt RopeTable
	rt.Init(64)
	for pos := 0; pos < 300; pos += 37 {
		for d := 0; d < 32; d += 5 {
			c := rt.Cos(pos, d)
			s := rt.Sin(pos, d)
			sum := ToFloat64(Mul(c, c)) + ToFloat64(Mul(s, s))
			if math.Abs(sum-1.0) > 1e-3 {
				t.Errorf("pos=%d d=%d: cos^2+sin^2=%f, want ~1.0", pos, d, sum)
			}
		}
	}
}

func TestRopeTableRebuildOnHeadDimChange(t *testing.T) {
	var rt RopeTable
	rt.Init(64)
	if rt.HeadDim() != 64 {
		t.Fatalf("HeadDim() = %d, want 64", rt.HeadDim())
	}
	rt.Init(128)
	if rt.HeadDim() != 128 {
		t.Fatalf("HeadDim() after rebuild = %d, want 128", rt.HeadDim())
	}
}
