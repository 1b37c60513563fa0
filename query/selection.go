package query

import (
	"fmt"
	"math"
	"sort"

	"github.com/developmentseed/mosaicjson-go/reader"
)

// PixelSelection names one of the compositing policies spec.md §4.6
// recognizes for combining per-asset pixel samples at one query location.
type PixelSelection string

const (
	First     PixelSelection = "first"
	Last      PixelSelection = "last"
	Highest   PixelSelection = "highest"
	Lowest    PixelSelection = "lowest"
	Mean      PixelSelection = "mean"
	Median    PixelSelection = "median"
	Stdev     PixelSelection = "stdev"
	Darkest   PixelSelection = "darkest"
	Brightest PixelSelection = "brightest"
)

// ValidPixelSelection reports whether sel is one of the recognized
// policies.
func ValidPixelSelection(sel PixelSelection) bool {
	switch sel {
	case First, Last, Highest, Lowest, Mean, Median, Stdev, Darkest, Brightest:
		return true
	default:
		return false
	}
}

// Compose combines the per-asset samples values (already ordered as the
// document/query lists its candidate assets, reversed by the caller if
// requested) into a single PixelValue per sel. Masked (no-data) samples
// are excluded band-wise from statistical policies; a fully masked band
// across all values stays masked in the output.
func Compose(values []reader.PixelValue, sel PixelSelection) (reader.PixelValue, error) {
	if len(values) == 0 {
		return reader.PixelValue{}, fmt.Errorf("query: Compose called with no candidate values")
	}
	if !ValidPixelSelection(sel) {
		return reader.PixelValue{}, fmt.Errorf("query: unrecognized pixel_selection %q", sel)
	}

	switch sel {
	case First:
		return values[0], nil
	case Last:
		return values[len(values)-1], nil
	}

	bands := len(values[0].Values)
	out := reader.PixelValue{
		Asset:  "composite:" + string(sel),
		Values: make([]float64, bands),
		Mask:   make([]bool, bands),
	}

	for band := 0; band < bands; band++ {
		samples := make([]float64, 0, len(values))
		for _, v := range values {
			if band < len(v.Mask) && v.Mask[band] {
				continue // masked: excluded from this band's statistic
			}
			if band < len(v.Values) {
				samples = append(samples, v.Values[band])
			}
		}
		if len(samples) == 0 {
			out.Mask[band] = true
			continue
		}
		out.Values[band] = reduceBand(samples, sel)
	}

	if sel == Darkest || sel == Brightest {
		return selectByBrightness(values, sel == Brightest), nil
	}

	return out, nil
}

func reduceBand(samples []float64, sel PixelSelection) float64 {
	switch sel {
	case Highest:
		return maxOf(samples)
	case Lowest:
		return minOf(samples)
	case Mean:
		return meanOf(samples)
	case Median:
		return medianOf(samples)
	case Stdev:
		return stdevOf(samples)
	default:
		return samples[0]
	}
}

// selectByBrightness returns the whole candidate (not a per-band blend)
// whose mean unmasked sample value is lowest (Darkest) or highest
// (Brightest), matching the spec's "whole-pixel" darkest/brightest
// policies rather than a per-band composite.
func selectByBrightness(values []reader.PixelValue, wantBrightest bool) reader.PixelValue {
	best := values[0]
	bestMean := meanUnmasked(values[0])
	for _, v := range values[1:] {
		m := meanUnmasked(v)
		if (wantBrightest && m > bestMean) || (!wantBrightest && m < bestMean) {
			best = v
			bestMean = m
		}
	}
	return best
}

func meanUnmasked(v reader.PixelValue) float64 {
	var sum float64
	var n int
	for i, val := range v.Values {
		if i < len(v.Mask) && v.Mask[i] {
			continue
		}
		sum += val
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func medianOf(xs []float64) float64 {
	sorted := append([]float64{}, xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func stdevOf(xs []float64) float64 {
	m := meanOf(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
