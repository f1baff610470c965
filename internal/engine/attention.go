package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/kvcache"
)

// Attention computes one layer's GQA/MQA causal self-attention over the
// cached K/V rows for positions [cache.StartPos(), p], per spec.md §4.E
// step 6. q is n_heads*head_dim wide; attnOut (same width) receives the
// per-head weighted sums. invSqrtHeadDim is 1/sqrt(head_dim) in Q16.16,
// precomputed once since head_dim is fixed for the model's lifetime.
func Attention(attnOut, q []fixedpoint.Fixed, cache *kvcache.Layer, cfg Config, p int, invSqrtHeadDim fixedpoint.Fixed, scores []fixedpoint.Fixed) error {
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

	for h := 0; h < cfg.NumHeads; h++ {
		kvHead := h / groupSize
		qOff := h * cfg.HeadDim
		qh := q[qOff : qOff+cfg.HeadDim]

		var maxScore fixedpoint.Fixed = fixedpoint.ExpMin
		first := true
		for t := 0; t < n; t++ {
			kOff := t*kvDim + kvHead*cfg.HeadDim
			kt := keys[kOff : kOff+cfg.HeadDim]
			var dot fixedpoint.Fixed
			for d := 0; d < cfg.HeadDim; d++ {
				dot += fixedpoint.Mul(qh[d], kt[d])
			}
			scores[t] = fixedpoint.Mul(dot, invSqrtHeadDim)
			if first || scores[t] > maxScore {
				maxScore = scores[t]
				first = false
			}
		}

		var sumExp fixedpoint.Fixed
		for t := 0; t < n; t++ {
			scores[t] = fixedpoint.Exp(scores[t] - maxScore)
			sumExp += scores[t]
		}
		if sumExp == 0 {
			if logrus.IsLevelEnabled(logrus.DebugLevel) {
				logrus.Debugf("engine.Attention: head %d sumExp == 0, substituting 1", h)
			}
			sumExp = fixedpoint.One
		}

		outOff := h * cfg.HeadDim
		for d := 0; d < cfg.HeadDim; d++ {
			attnOut[outOff+d] = 0
		}
		for t := 0; t < n; t++ {
			weight := fixedpoint.Div(scores[t], sumExp)
			vOff := t*kvDim + kvHead*cfg.HeadDim
			vt := values[vOff : vOff+cfg.HeadDim]
			for d := 0; d < cfg.HeadDim; d++ {
				attnOut[outOff+d] += fixedpoint.Mul(weight, vt[d])
			}
		}
	}
	return nil
}
