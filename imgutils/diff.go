// Package imgutils holds small image helpers shared by the CLI and the camera component.
package imgutils

import (
	"image"
	"image/color"
	"math"
)

// GrayStats summarizes the gray levels of an image. Rendered depth images leave pixels no
// point reached at 0, so Empty counts the pixels a render did not cover.
type GrayStats struct {
	Pixels int
	Empty  int
	Mean   float64
	Min    uint8
	Max    uint8
}

// Coverage is the fraction of non zero pixels.
func (s GrayStats) Coverage() float64 {
	if s.Pixels == 0 {
		return 0
	}
	return float64(s.Pixels-s.Empty) / float64(s.Pixels)
}

func (s *GrayStats) add(v uint8, total *float64) {
	if s.Pixels == 0 || v < s.Min {
		s.Min = v
	}
	if s.Pixels == 0 || v > s.Max {
		s.Max = v
	}
	if v == 0 {
		s.Empty++
	}
	s.Pixels++
	*total += float64(v)
}

// ComputeGrayStats converts img to gray pixel by pixel and summarizes it. An empty image
// yields the zero GrayStats.
func ComputeGrayStats(img image.Image) GrayStats {
	var s GrayStats
	total := 0.0
	bounds := img.Bounds()

	if g, ok := img.(*image.Gray); ok {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			row := g.Pix[g.PixOffset(bounds.Min.X, y):g.PixOffset(bounds.Max.X, y)]
			for _, v := range row {
				s.add(v, &total)
			}
		}
	} else {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				s.add(color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y, &total)
			}
		}
	}

	if s.Pixels > 0 {
		s.Mean = total / float64(s.Pixels)
	}
	return s
}

// MeanDifference is the absolute difference of the mean gray levels of two images.
func MeanDifference(a, b image.Image) float64 {
	return math.Abs(ComputeGrayStats(a).Mean - ComputeGrayStats(b).Mean)
}
