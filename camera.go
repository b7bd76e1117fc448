// Package vsicommon loads pinhole cameras from the structure from motion formats in sfmio and
// holds the model family of the Viam components built on them.
package vsicommon

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"github.com/NoahRJohnson/vsi-common/pinhole"
	"github.com/NoahRJohnson/vsi-common/sfmio"
)

var NamespaceFamily = resource.NewModelFamily("noahrjohnson", "vsi-common")

// LoadCamera reads camera index from path. NVM (.nvm) and bundler (.out) files hold many
// cameras and only a focal length, so width and height complete their calibration. Anything
// else is read as a single KRT camera, for which index must be 0 and the size is unused.
func LoadCamera(path string, index int, width, height float64, logger logging.Logger) (*pinhole.Camera, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nvm":
		model, err := sfmio.ReadNVMFile(path, logger)
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(model.Cameras) {
			return nil, errors.Errorf("camera index %d out of range, %s has %d cameras", index, path, len(model.Cameras))
		}
		logger.Debugf("using camera %d (%s) from %s", index, model.Cameras[index].ImageName, path)
		return model.Cameras[index].Camera(width, height)
	case ".out":
		bundle, err := sfmio.ReadBundlerFile(path)
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(bundle.Cameras) {
			return nil, errors.Errorf("camera index %d out of range, %s has %d cameras", index, path, len(bundle.Cameras))
		}
		bc := bundle.Cameras[index]
		if bc.HasDistortion() {
			logger.Warnf("ignoring radial distortion (%v, %v) of camera %d", bc.K1, bc.K2, index)
		}
		return bc.Camera(width, height)
	default:
		if index != 0 {
			return nil, errors.Errorf("%s holds a single camera, index %d is invalid", path, index)
		}
		krt, err := sfmio.ReadKRTFile(path)
		if err != nil {
			return nil, err
		}
		return krt.Camera()
	}
}
