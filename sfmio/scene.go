package sfmio

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/pointcloud"
)

// ScenePoint is a reconstructed 3-D point with its color.
type ScenePoint struct {
	Position r3.Vector
	Color    color.NRGBA
	// number of images observing the point
	Views int
}

// ScenePointCloud converts scene points into a colored point cloud.
func ScenePointCloud(pts []ScenePoint) (pointcloud.PointCloud, error) {
	pc := pointcloud.NewBasicPointCloud(len(pts))
	for i, p := range pts {
		if err := pc.Set(p.Position, pointcloud.NewColoredData(p.Color)); err != nil {
			return nil, errors.Wrapf(err, "error setting point %d (%v)", i, p.Position)
		}
	}
	return pc, nil
}

// ScenePositions returns only the positions.
func ScenePositions(pts []ScenePoint) []r3.Vector {
	out := make([]r3.Vector, len(pts))
	for i, p := range pts {
		out[i] = p.Position
	}
	return out
}

func parseColor(vals []float64) (color.NRGBA, error) {
	if len(vals) != 3 {
		return color.NRGBA{}, errors.Errorf("color has %d elements, expected 3", len(vals))
	}
	for _, v := range vals {
		if v < 0 || v > 255 {
			return color.NRGBA{}, errors.Errorf("color component %v out of range [0, 255]", v)
		}
	}
	return color.NRGBA{R: uint8(vals[0]), G: uint8(vals[1]), B: uint8(vals[2]), A: 255}, nil
}
