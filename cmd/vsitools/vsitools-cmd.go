package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/rimage"

	vsicommon "github.com/NoahRJohnson/vsi-common"
	"github.com/NoahRJohnson/vsi-common/imgutils"
	"github.com/NoahRJohnson/vsi-common/render"
	"github.com/NoahRJohnson/vsi-common/sfmio"
)

func main() {
	err := realMain()
	if err != nil {
		panic(err)
	}
}

func realMain() error {
	logger := logging.NewLogger("vsitools")
	ctx := context.Background()

	cmd := flag.String("cmd", "", "command: project, backproject, homography, rescale, render, info")
	cameraFile := flag.String("camera", "", "camera file (KRT, bundler .out or .nvm)")
	cameraIndex := flag.Int("camera-index", 0, "camera to use from a bundler or nvm file")
	width := flag.Float64("width", 0, "image width")
	height := flag.Float64("height", 0, "image height")
	in := flag.String("in", "", "input file; render merges a comma separated list")
	depths := flag.String("depths", "", "depths file for backproject")
	out := flag.String("out", "", "output file")
	depthOut := flag.String("depth-out", "", "depth image for render")
	scale := flag.Float64("scale", 1, "rescale factor")
	planeOrigin := flag.String("plane-origin", "0,0,0", "plane origin x,y,z")
	planeX := flag.String("plane-x", "1,0,0", "plane x axis")
	planeY := flag.String("plane-y", "0,1,0", "plane y axis")
	vmin := flag.Float64("vmin", 0, "depth mapped to black")
	vmax := flag.Float64("vmax", 0, "depth mapped to white, 0 for the farthest point")

	flag.Parse()

	if *cmd == "" {
		return fmt.Errorf("need a cmd")
	}

	if *cameraFile == "" {
		return fmt.Errorf("need a camera")
	}
	cam, err := vsicommon.LoadCamera(*cameraFile, *cameraIndex, *width, *height, logger)
	if err != nil {
		return err
	}

	if *cmd == "info" {
		logger.Infof("camera: %v", cam)
		logger.Infof("center: %v", cam.Center())
		logger.Infof("K: %v", cam.K())
		logger.Infof("P: %v", cam.P())
		if *in != "" {
			img, err := rimage.ReadImageFromFile(*in)
			if err != nil {
				return err
			}
			stats := imgutils.ComputeGrayStats(img)
			logger.Infof("%s: %v gray mean %0.2f range [%d, %d]", *in, img.Bounds(), stats.Mean, stats.Min, stats.Max)
		}
		return nil
	}

	if *cmd == "project" {
		pts, err := sfmio.ReadPointsFile(*in)
		if err != nil {
			return err
		}
		pixels, err := cam.ProjectPoints(pts)
		if err != nil {
			return err
		}
		if *out == "" {
			for i, px := range pixels {
				logger.Infof("%v -> %v", pts[i], px)
			}
			return nil
		}
		return sfmio.WriteImagePointsFile(*out, pixels)
	}

	if *cmd == "backproject" {
		pixels, err := sfmio.ReadImagePointsFile(*in)
		if err != nil {
			return err
		}
		ds, err := sfmio.ReadVectorFile(*depths)
		if err != nil {
			return err
		}
		pts, err := cam.BackprojectPoints(pixels, ds)
		if err != nil {
			return err
		}
		if *out == "" {
			return fmt.Errorf("need an out")
		}
		return sfmio.WritePointsFile(*out, pts)
	}

	if *cmd == "homography" {
		origin, err := parseVec3Flag(*planeOrigin)
		if err != nil {
			return err
		}
		px, err := parseVec3Flag(*planeX)
		if err != nil {
			return err
		}
		py, err := parseVec3Flag(*planeY)
		if err != nil {
			return err
		}
		toImage, err := cam.PlaneToImage(origin, px, py)
		if err != nil {
			return err
		}
		toPlane, err := cam.ImageToPlane(origin, px, py)
		if err != nil {
			return err
		}
		logger.Infof("plane to image: %v", toImage)
		logger.Infof("image to plane: %v", toPlane)
		return nil
	}

	if *cmd == "rescale" {
		scaled, err := cam.Rescale(*scale)
		if err != nil {
			return err
		}
		if *out == "" {
			return fmt.Errorf("need an out")
		}
		logger.Infof("K: %v -> %v", cam.K(), scaled.K())
		return sfmio.WriteKRTFile(*out, sfmio.KRTFromCamera(scaled))
	}

	if *cmd == "render" {
		if *out == "" {
			return fmt.Errorf("need an out")
		}
		clouds := []pointcloud.PointCloud{}
		for _, fn := range strings.Split(*in, ",") {
			pc, err := readCloud(fn, logger)
			if err != nil {
				return err
			}
			clouds = append(clouds, pc)
		}
		pc, err := render.MergePointClouds(clouds...)
		if err != nil {
			return err
		}
		w := int(math.Round(*width))
		h := int(math.Round(*height))
		img, depth, err := render.PCToImage(ctx, cam, pc, w, h)
		if err != nil {
			return err
		}
		logger.Infof("rendered %d points to %dx%d", pc.Size(), w, h)
		if err := rimage.WriteImageToFile(*out, img); err != nil {
			return err
		}
		if *depthOut == "" {
			return nil
		}
		hi := *vmax
		if hi == 0 {
			for _, d := range depth {
				hi = math.Max(hi, d)
			}
		}
		if hi <= *vmin {
			hi = *vmin + 1
		}
		stats, err := imgutils.WriteScaledGray(*depthOut, depth, w, h, *vmin, hi)
		if err != nil {
			return err
		}
		logger.Infof("depth image %s covers %0.1f%% of pixels, gray mean %0.2f", *depthOut, 100*stats.Coverage(), stats.Mean)
		return nil
	}

	return fmt.Errorf("invalid command [%s]", *cmd)

}

// readCloud reads a PCD file, or the points of an NVM reconstruction.
func readCloud(fn string, logger logging.Logger) (pointcloud.PointCloud, error) {
	if strings.EqualFold(filepath.Ext(fn), ".nvm") {
		model, err := sfmio.ReadNVMFile(fn, logger)
		if err != nil {
			return nil, err
		}
		return model.PointCloud()
	}
	return pointcloud.NewFromFile(fn, "")
}

func parseVec3Flag(s string) (r3.Vector, error) {
	v, err := sfmio.ParseVector(strings.ReplaceAll(s, ",", " "))
	if err != nil {
		return r3.Vector{}, err
	}
	if len(v) != 3 {
		return r3.Vector{}, fmt.Errorf("need x,y,z got %q", s)
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}
