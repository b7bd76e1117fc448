package imgutils

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"go.viam.com/rdk/rimage"
)

// ScaleToGray maps a row-major float raster onto 8 bit gray: vmin becomes 0, vmax becomes
// 255 and everything outside is clipped. NaN values are written as 0.
func ScaleToGray(values []float64, width, height int, vmin, vmax float64) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad raster size %dx%d", width, height)
	}
	if len(values) != width*height {
		return nil, errors.Errorf("raster %dx%d needs %d values, got %d", width, height, width*height, len(values))
	}
	if !(vmax > vmin) {
		return nil, errors.Errorf("vmax (%v) must be greater than vmin (%v)", vmax, vmin)
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	span := vmax - vmin
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := values[y*width+x]
			if math.IsNaN(v) {
				continue
			}
			s := math.Min(math.Max((v-vmin)/span, 0), 1)
			img.Pix[y*img.Stride+x] = uint8(math.Round(s * 255))
		}
	}
	return img, nil
}

// WriteScaledGray scales values with ScaleToGray and writes the result, the format coming
// from the file extension. It returns the gray statistics of what was written.
func WriteScaledGray(path string, values []float64, width, height int, vmin, vmax float64) (GrayStats, error) {
	img, err := ScaleToGray(values, width, height, vmin, vmax)
	if err != nil {
		return GrayStats{}, err
	}
	if err := rimage.WriteImageToFile(path, img); err != nil {
		return GrayStats{}, err
	}
	return ComputeGrayStats(img), nil
}
