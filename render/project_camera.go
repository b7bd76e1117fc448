package render

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/data"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/robot/framesystem"
	"go.viam.com/rdk/spatialmath"

	vsicommon "github.com/NoahRJohnson/vsi-common"
	"github.com/NoahRJohnson/vsi-common/imgutils"
	"github.com/NoahRJohnson/vsi-common/pinhole"
)

var ProjectCameraModel = vsicommon.NamespaceFamily.WithModel("pc-project-camera")

func init() {
	resource.RegisterComponent(
		camera.API,
		ProjectCameraModel,
		resource.Registration[camera.Camera, *ProjectCameraConfig]{
			Constructor: newProjectCamera,
		})
}

// ProjectCameraConfig describes the pinhole camera either inline (K, R and T as row-major
// lists) or as a file readable by vsicommon.LoadCamera.
type ProjectCameraConfig struct {
	Src      string
	SrcFrame string `json:"src_frame"`

	K []float64 `json:"k"`
	R []float64 `json:"r"`
	T []float64 `json:"t"`

	CameraFile  string `json:"camera_file"`
	CameraIndex int    `json:"camera_index"`

	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

func (c *ProjectCameraConfig) Validate(path string) ([]string, []string, error) {
	if c.Src == "" {
		return nil, nil, fmt.Errorf("need a src camera")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return nil, nil, fmt.Errorf("need a positive width and height, got %dx%d", c.Width, c.Height)
	}
	if c.Scale < 0 {
		return nil, nil, fmt.Errorf("scale cannot be negative")
	}

	if c.CameraFile != "" {
		if len(c.K) > 0 {
			return nil, nil, fmt.Errorf("set either camera_file or k, not both")
		}
		return []string{c.Src}, nil, nil
	}

	if len(c.K) != 9 {
		return nil, nil, fmt.Errorf("k needs 9 values, got %d", len(c.K))
	}
	if len(c.R) != 0 && len(c.R) != 9 {
		return nil, nil, fmt.Errorf("r needs 9 values, got %d", len(c.R))
	}
	if len(c.T) != 0 && len(c.T) != 3 {
		return nil, nil, fmt.Errorf("t needs 3 values, got %d", len(c.T))
	}
	return []string{c.Src}, nil, nil
}

func (c *ProjectCameraConfig) scale() float64 {
	if c.Scale == 0 {
		return 1
	}
	return c.Scale
}

// pinholeCamera builds the configured camera, rescaled, with the matching image size.
func (c *ProjectCameraConfig) pinholeCamera(logger logging.Logger) (*pinhole.Camera, int, int, error) {
	var cam *pinhole.Camera
	var err error

	if c.CameraFile != "" {
		cam, err = vsicommon.LoadCamera(c.CameraFile, c.CameraIndex, float64(c.Width), float64(c.Height), logger)
	} else {
		cam, err = c.inlineCamera()
	}
	if err != nil {
		return nil, 0, 0, err
	}

	s := c.scale()
	if s == 1 {
		return cam, c.Width, c.Height, nil
	}
	cam, err = cam.Rescale(s)
	if err != nil {
		return nil, 0, 0, err
	}
	w := int(math.Round(float64(c.Width) * s))
	h := int(math.Round(float64(c.Height) * s))
	if w <= 0 || h <= 0 {
		return nil, 0, 0, fmt.Errorf("scale %v leaves an empty %dx%d image", s, w, h)
	}
	return cam, w, h, nil
}

func (c *ProjectCameraConfig) inlineCamera() (*pinhole.Camera, error) {
	k, err := pinhole.Mat3FromSlice(c.K)
	if err != nil {
		return nil, err
	}
	r := pinhole.Identity3()
	if len(c.R) > 0 {
		r, err = pinhole.Mat3FromSlice(c.R)
		if err != nil {
			return nil, err
		}
	}
	t := r3.Vector{}
	if len(c.T) == 3 {
		t = r3.Vector{X: c.T[0], Y: c.T[1], Z: c.T[2]}
	}
	return pinhole.New(k, r, t)
}

func newProjectCamera(ctx context.Context, deps resource.Dependencies, config resource.Config, logger logging.Logger) (camera.Camera, error) {
	newConf, err := resource.NativeConfig[*ProjectCameraConfig](config)
	if err != nil {
		return nil, err
	}

	src, err := camera.FromProvider(deps, newConf.Src)
	if err != nil {
		return nil, err
	}

	var fsSvc framesystem.Service
	if newConf.SrcFrame != "" {
		fsSvc, err = framesystem.FromDependencies(deps)
		if err != nil {
			return nil, err
		}
	}

	return NewProjectCamera(config.ResourceName(), newConf, src, fsSvc, logger)
}

// NewProjectCamera builds the camera around an already resolved source. fsSvc is only
// needed when cfg.SrcFrame is set.
func NewProjectCamera(
	name resource.Name,
	cfg *ProjectCameraConfig,
	src camera.Camera,
	fsSvc framesystem.Service,
	logger logging.Logger,
) (camera.Camera, error) {
	cam, w, h, err := cfg.pinholeCamera(logger)
	if err != nil {
		return nil, err
	}
	if cfg.SrcFrame != "" && fsSvc == nil {
		return nil, fmt.Errorf("src_frame %q set without a frame system", cfg.SrcFrame)
	}

	logger.Infof("projecting %s through camera centered at %v, %dx%d", cfg.Src, cam.Center(), w, h)

	return &projectCamera{
		name:   name,
		cfg:    cfg,
		logger: logger,
		src:    src,
		fsSvc:  fsSvc,
		cam:    cam,
		width:  w,
		height: h,
	}, nil
}

type projectCamera struct {
	resource.AlwaysRebuild
	resource.TriviallyCloseable

	name   resource.Name
	cfg    *ProjectCameraConfig
	logger logging.Logger

	src   camera.Camera
	fsSvc framesystem.Service

	cam    *pinhole.Camera
	width  int
	height int

	lock               sync.Mutex
	active             bool
	lastPointCloud     pointcloud.PointCloud
	lastPointCloudTime time.Time
	lastPointCloudErr  error
}

func (pc *projectCamera) Name() resource.Name {
	return pc.name
}

func (pc *projectCamera) render(ctx context.Context, extra map[string]interface{}) (image.Image, []float64, error) {
	cloud, err := pc.NextPointCloud(ctx, extra)
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	img, depth, err := PCToImage(ctx, pc.cam, cloud, pc.width, pc.height)
	if err != nil {
		return nil, nil, err
	}
	elapsed := time.Since(start)
	if elapsed > (time.Millisecond * 100) {
		pc.logger.Infof("PCToImage took %v", elapsed)
	}
	return img, depth, nil
}

func (pc *projectCamera) Image(ctx context.Context, mimeType string, extra map[string]interface{}) ([]byte, camera.ImageMetadata, error) {
	img, _, err := pc.render(ctx, extra)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}

	data, err := rimage.EncodeImage(ctx, img, mimeType)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}

	return data, camera.ImageMetadata{MimeType: mimeType}, err
}

func depthImage(depth []float64, width, height int) (image.Image, error) {
	vmax := 0.0
	for _, d := range depth {
		vmax = math.Max(vmax, d)
	}
	if vmax == 0 {
		vmax = 1
	}
	img, err := imgutils.ScaleToGray(depth, width, height, 0, vmax)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (pc *projectCamera) Images(ctx context.Context, filterSourceNames []string, extra map[string]interface{}) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	img, depth, err := pc.render(ctx, extra)
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}

	want := func(n string) bool {
		if len(filterSourceNames) == 0 {
			return true
		}
		for _, f := range filterSourceNames {
			if f == n {
				return true
			}
		}
		return false
	}

	out := []camera.NamedImage{}
	if want("color") {
		ni, err := camera.NamedImageFromImage(img, "color", "image/png", data.Annotations{})
		if err != nil {
			return nil, resource.ResponseMetadata{}, err
		}
		out = append(out, ni)
	}
	if want("depth") {
		dimg, err := depthImage(depth, pc.width, pc.height)
		if err != nil {
			return nil, resource.ResponseMetadata{}, err
		}
		ni, err := camera.NamedImageFromImage(dimg, "depth", "image/png", data.Annotations{})
		if err != nil {
			return nil, resource.ResponseMetadata{}, err
		}
		out = append(out, ni)
	}
	return out, resource.ResponseMetadata{time.Now()}, nil
}

// DoCommand supports {"project": [[x, y, z], ...]}, returning the pixels under "pixels".
func (pc *projectCamera) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	raw, ok := cmd["project"]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("project wants a list of points, got %T", raw)
	}

	pixels := []interface{}{}
	for i, x := range list {
		p, err := toVector(x)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		px, err := pc.cam.ProjectPoint(p)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		pixels = append(pixels, []interface{}{px.X, px.Y})
	}
	return map[string]interface{}{"pixels": pixels}, nil
}

func toVector(x interface{}) (r3.Vector, error) {
	vals, ok := x.([]interface{})
	if !ok || len(vals) != 3 {
		return r3.Vector{}, fmt.Errorf("want [x, y, z], got %v", x)
	}
	f := [3]float64{}
	for i, v := range vals {
		n, ok := v.(float64)
		if !ok {
			return r3.Vector{}, fmt.Errorf("coordinate %d is %T, not a number", i, v)
		}
		f[i] = n
	}
	return r3.Vector{X: f[0], Y: f[1], Z: f[2]}, nil
}

// NextPointCloud returns the source points that land inside the image. Concurrent callers
// share a single fetch.
func (pc *projectCamera) NextPointCloud(ctx context.Context, extra map[string]interface{}) (pointcloud.PointCloud, error) {

	start := time.Now()
	pc.lock.Lock()
	if pc.active {
		pc.lock.Unlock()
		return pc.waitForPointCloudAfter(ctx, start)
	}

	pc.active = true
	pc.lock.Unlock()

	cloud, err := pc.doNextPointCloud(ctx, extra)

	pc.lock.Lock()
	pc.active = false
	pc.lastPointCloud = cloud
	pc.lastPointCloudErr = err
	pc.lastPointCloudTime = time.Now()
	pc.lock.Unlock()

	return cloud, err
}

func (pc *projectCamera) waitForPointCloudAfter(ctx context.Context, when time.Time) (pointcloud.PointCloud, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if time.Since(when) > time.Minute {
			return nil, fmt.Errorf("waitForPointCloudAfter timed out after %v", time.Since(when))
		}

		pc.lock.Lock()
		if pc.lastPointCloudTime.After(when) {
			cloud := pc.lastPointCloud
			err := pc.lastPointCloudErr
			pc.lock.Unlock()
			return cloud, err
		}
		pc.lock.Unlock()

		time.Sleep(time.Millisecond * 50)
	}
}

func (pc *projectCamera) doNextPointCloud(ctx context.Context, extra map[string]interface{}) (pointcloud.PointCloud, error) {
	start := time.Now()

	cloud, err := pc.src.NextPointCloud(ctx, extra)
	if err != nil {
		return nil, err
	}

	timeA := time.Since(start)

	if pc.cfg.SrcFrame != "" {
		cloud, err = pc.fsSvc.TransformPointCloud(ctx, cloud, pc.cfg.SrcFrame, referenceframe.World)
		if err != nil {
			return nil, err
		}
	}

	timeB := time.Since(start)

	cloud, err = PCCropToImageBoxes(pc.cam, cloud, []image.Rectangle{image.Rect(0, 0, pc.width-1, pc.height-1)})
	if err != nil {
		return nil, err
	}
	timeC := time.Since(start)

	if timeC > (time.Millisecond * 250) {
		pc.logger.Infof("projectCamera::NextPointCloud timeA: %v timeB: %v timeC: %v", timeA, timeB, timeC)
	}

	return cloud, nil
}

func (pc *projectCamera) Properties(ctx context.Context) (camera.Properties, error) {
	return CameraProperties(pc.cam, pc.width, pc.height), nil
}

func (pc *projectCamera) Geometries(ctx context.Context, _ map[string]interface{}) ([]spatialmath.Geometry, error) {
	return nil, nil
}
