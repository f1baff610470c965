package engine

import "github.com/embodios/forge/internal/fixedpoint"

// Sample implements spec.md §4.F's companion sampling routine: optional
// temperature scaling (skipped entirely when temperature == 1, per spec),
// a numerically stable softmax, and greedy argmax selection. topP is
// reserved and ignored — nucleus sampling is an explicit Non-goal.
func Sample(logits []fixedpoint.Fixed, temperature fixedpoint.Fixed, topP fixedpoint.Fixed) int {
	scaled := logits
	if temperature != fixedpoint.One {
		scaled = make([]fixedpoint.Fixed, len(logits))
		for i, v := range logits {
			scaled[i] = fixedpoint.Div(v, temperature)
		}
	}

	probs := softmax(scaled)

	best := 0
	var bestP fixedpoint.Fixed = -1 << 31
	for i, p := range probs {
		if p > bestP {
			bestP = p
			best = i
		}
	}
	return best
}

// softmax computes a numerically stable softmax over x: subtract the max,
// exponentiate, normalize by the sum (substituting 1 if the sum underflows
// to zero, the same transient-numeric-edge handling as Attention).
func softmax(x []fixedpoint.Fixed) []fixedpoint.Fixed {
	if len(x) == 0 {
		return nil
	}
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]fixedpoint.Fixed, len(x))
	var sum fixedpoint.Fixed
	for i, v := range x {
		out[i] = fixedpoint.Exp(v - max)
		sum += out[i]
	}
	if sum == 0 {
		sum = fixedpoint.One
	}
	for i := range out {
		out[i] = fixedpoint.Div(out[i], sum)
	}
	return out
}
