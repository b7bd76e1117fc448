// Package render moves point clouds through a pinhole.Camera: projection into pixel space,
// z-buffered rendering to color and depth rasters, and cropping by image regions.
package render

import (
	"context"
	"image"
	"image/color"
	"math"
	"runtime"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/vision/objectdetection"
	"golang.org/x/sync/errgroup"

	"github.com/NoahRJohnson/vsi-common/pinhole"
)

// ProjectedPoint is one point cloud entry after projection.
type ProjectedPoint struct {
	World r3.Vector
	Data  pointcloud.Data
	Pixel r2.Point
	// Distance from the camera center, the depth used for backprojection.
	Distance float64
	// Visible is false for points behind the camera, whose Pixel is meaningless.
	Visible bool
}

const projectChunk = 4096

func pcEntries(pc pointcloud.PointCloud) ([]r3.Vector, []pointcloud.Data) {
	pts := make([]r3.Vector, 0, pc.Size())
	data := make([]pointcloud.Data, 0, pc.Size())
	pc.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		pts = append(pts, p)
		data = append(data, d)
		return true
	})
	return pts, data
}

// ProjectPointCloud projects every point of pc. Work is split in chunks across the available
// CPUs; the output order follows pc's iteration order.
func ProjectPointCloud(ctx context.Context, cam *pinhole.Camera, pc pointcloud.PointCloud) ([]ProjectedPoint, error) {
	pts, data := pcEntries(pc)
	out := make([]ProjectedPoint, len(pts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for start := 0; start < len(pts); start += projectChunk {
		end := min(start+projectChunk, len(pts))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				pp := ProjectedPoint{World: pts[i], Data: data[i], Distance: cam.Distance(pts[i])}
				if cam.InFront(pts[i]) {
					px, err := cam.ProjectPoint(pts[i])
					if err == nil {
						pp.Pixel = px
						pp.Visible = true
					} else if !errors.Is(err, pinhole.ErrDegenerateProjection) {
						return errors.Wrapf(err, "point %d", i)
					}
				}
				out[i] = pp
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func pixelIndex(px r2.Point, width, height int) (int, int, bool) {
	x := int(math.Floor(px.X))
	y := int(math.Floor(px.Y))
	if x < 0 || y < 0 || x >= width || y >= height {
		return 0, 0, false
	}
	return x, y, true
}

// PCToImage renders pc as seen by cam into a width x height image. When several points land
// on the same pixel the one closest to the camera wins. The second return value is the
// row-major distance raster, 0 where no point landed. Points without color are drawn white.
func PCToImage(ctx context.Context, cam *pinhole.Camera, pc pointcloud.PointCloud, width, height int) (*image.RGBA, []float64, error) {
	if width <= 0 || height <= 0 {
		return nil, nil, errors.Wrapf(pinhole.ErrInvalidParameter, "bad image size %dx%d", width, height)
	}

	projected, err := ProjectPointCloud(ctx, cam, pc)
	if err != nil {
		return nil, nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bestZ := make([]float64, width*height)

	for _, pp := range projected {
		if !pp.Visible {
			continue
		}
		x, y, ok := pixelIndex(pp.Pixel, width, height)
		if !ok {
			continue
		}

		key := (y * width) + x
		oldZ := bestZ[key]
		if oldZ != 0 && pp.Distance >= oldZ {
			continue
		}

		var c color.Color = color.White
		if pp.Data != nil && pp.Data.HasColor() {
			c = pp.Data.Color()
		}
		img.Set(x, y, c)

		bestZ[key] = pp.Distance
	}

	return img, bestZ, nil
}

// PCCropToImageBoxes keeps the points in front of cam whose projection falls inside any of
// the boxes, edges included.
func PCCropToImageBoxes(cam *pinhole.Camera, pc pointcloud.PointCloud, boxes []image.Rectangle) (pointcloud.PointCloud, error) {
	out := pointcloud.NewBasicEmpty()

	var setErr error
	pc.Iterate(0, 0, func(p r3.Vector, d pointcloud.Data) bool {
		if !cam.InFront(p) {
			return true
		}
		px, err := cam.ProjectPoint(p)
		if err != nil {
			return true
		}
		x := int(math.Floor(px.X))
		y := int(math.Floor(px.Y))

		inBox := false
		for _, b := range boxes {
			if x >= b.Min.X &&
				x <= b.Max.X &&
				y >= b.Min.Y &&
				y <= b.Max.Y {
				inBox = true
				break
			}
		}
		if inBox {
			if err := out.Set(p, d); err != nil {
				setErr = err
				return false
			}
		}

		return true
	})

	if setErr != nil {
		return nil, setErr
	}
	return out, nil
}

// PCCropToDetections crops pc to the bounding boxes of the given detections.
func PCCropToDetections(cam *pinhole.Camera, pc pointcloud.PointCloud, detections []objectdetection.Detection) (pointcloud.PointCloud, error) {
	boxes := make([]image.Rectangle, 0, len(detections))
	for _, d := range detections {
		if b := d.BoundingBox(); b != nil {
			boxes = append(boxes, *b)
		}
	}
	return PCCropToImageBoxes(cam, pc, boxes)
}
