package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/embodios/forge/internal/kvcache"
	"github.com/embodios/forge/internal/scheduler"
)

// FastExpClampLo and FastExpClampHi bound the floating attention path's
// fast-exp approximation. spec.md §9 Open Question #3: this bound is
// preserved exactly as the reference implementation states it, wider than
// the fixed-point kernel's [-8,8] (fixedpoint.ExpMax/ExpMin). FastExp32
// uses the same polynomial as fixedpoint.Exp, so its relative error grows
// toward both ends of this range; it is still a hard clamp, not silently
// widened further.
const (
	FastExpClampLo float32 = -10
	FastExpClampHi float32 = 10
)

// FastExp32 approximates e^x for float32 via the same range-reduction +
// Taylor-expansion shape as fixedpoint.Exp (x -> x/8, 5-term Taylor, raise
// to the 8th power by three squarings), translated to float32 arithmetic.
// Valid only on [FastExpClampLo, FastExpClampHi]; inputs outside that range
// are clamped rather than extrapolated, per spec.md §9's Open Question #3.
func FastExp32(x float32) float32 {
	if x > FastExpClampHi {
		x = FastExpClampHi
	}
	if x < FastExpClampLo {
		x = FastExpClampLo
	}

	z := x / 8
	z2 := z * z
	z3 := z2 * z
	z4 := z3 * z
	t := float32(1) + z + z2/2 + z3/6 + z4/24

	t *= t
	t *= t
	t *= t
	return t
}

// FloatAttentionScratch holds the per-call partials the floating attention
// variant reduces across scheduler.Pool workers. Sized to
// scheduler.MaxWorkers so it never reallocates once constructed, matching
// the scratch-buffer invariant in spec.md §3.
type FloatAttentionScratch struct {
	Scores      []float32 // max_seq_len
	SumPartials [scheduler.MaxWorkers]float32
	OutPartials [scheduler.MaxWorkers][]float32 // each sized head_dim
}

// NewFloatAttentionScratch allocates a FloatAttentionScratch sized to cfg.
func NewFloatAttentionScratch(cfg Config) *FloatAttentionScratch {
	s := &FloatAttentionScratch{Scores: make([]float32, cfg.MaxSeqLen)}
	for i := range s.OutPartials {
		s.OutPartials[i] = make([]float32, cfg.HeadDim)
	}
	return s
}

// AttentionFloat32 is the floating-point sibling of Attention (spec.md §1:
// "a parallel floating-point variant over a work-stealing pool"), grounded
// on go-highway's BaseSDPA loop shape (per-query-row score, running-max
// softmax, weighted V accumulation) translated from its SIMD-lane loop to a
// scalar loop whose softmax-sum and output reductions are explicitly
// chunked across pool so spec.md §4.F's determinism clause holds: "with the
// floating engine, outputs are bit-exact only when the scheduler is in
// deterministic mode (fixed partitioning yields the same reduction
// order)". Each worker accumulates its own claimed chunks into a private
// slot (SumPartials[threadID], OutPartials[threadID]); the caller then
// combines slots 0..N-1 in that fixed order. In deterministic mode every
// worker claims exactly one fixed contiguous range every run, so the
// partials — and the combine — are bit-identical across runs. In
// work-stealing mode, which chunks a given worker claims (and in what
// order) depends on runtime goroutine scheduling, so the partials (and
// hence the final float32 sum, which is not associative) can differ run to
// run.
func AttentionFloat32(pool *scheduler.Pool, attnOut, q []float32, cache *kvcache.FloatLayer, cfg Config, p int, invSqrtHeadDim float32, scratch *FloatAttentionScratch) error {
	start := cache.StartPos()
	end := p + 1

	keys, err := cache.GetKeys(start, end)
	if err != nil {
		return err
	}
	values, err := cache.GetValues(start, end)
	if err != nil {
		return err
	}
	n := end - start
	kvDim := cfg.KVDim()
	groupSize := cfg.GroupSize()
	scores := scratch.Scores

	for h := 0; h < cfg.NumHeads; h++ {
		kvHead := h / groupSize
		qOff := h * cfg.HeadDim
		qh := q[qOff : qOff+cfg.HeadDim]

		for t := 0; t < n; t++ {
			kOff := t*kvDim + kvHead*cfg.HeadDim
			kt := keys[kOff : kOff+cfg.HeadDim]
			var dot float32
			for d := 0; d < cfg.HeadDim; d++ {
				dot += qh[d] * kt[d]
			}
			scores[t] = dot * invSqrtHeadDim
		}

		maxScore := scores[0]
		for t := 1; t < n; t++ {
			if scores[t] > maxScore {
				maxScore = scores[t]
			}
		}

		for i := range scratch.SumPartials {
			scratch.SumPartials[i] = 0
		}
		outOff := h * cfg.HeadDim
		for i := range scratch.OutPartials {
			for d := 0; d < cfg.HeadDim; d++ {
				scratch.OutPartials[i][d] = 0
			}
		}

		pool.ParallelFor(func(threadID, s, e int) {
			sum := scratch.SumPartials[threadID]
			partial := scratch.OutPartials[threadID]
			for t := s; t < e; t++ {
				w := FastExp32(scores[t] - maxScore)
				scores[t] = w
				sum += w
				vOff := t*kvDim + kvHead*cfg.HeadDim
				vt := values[vOff : vOff+cfg.HeadDim]
				for d := 0; d < cfg.HeadDim; d++ {
					partial[d] += w * vt[d]
				}
			}
			scratch.SumPartials[threadID] = sum
		}, n, 1)

		var sumExp float32
		for i := 0; i < pool.NumWorkers(); i++ {
			sumExp += scratch.SumPartials[i]
		}
		if sumExp == 0 {
			if logrus.IsLevelEnabled(logrus.DebugLevel) {
				logrus.Debugf("engine.AttentionFloat32: head %d sumExp == 0, substituting 1", h)
			}
			sumExp = 1
		}
		invSum := 1 / sumExp

		for d := 0; d < cfg.HeadDim; d++ {
			var acc float32
			for i := 0; i < pool.NumWorkers(); i++ {
				acc += scratch.OutPartials[i][d]
			}
			attnOut[outOff+d] = acc * invSum
		}
	}
	return nil
}
