package render

import (
	"go.viam.com/rdk/pointcloud"
)

// MergePointClouds concatenates clouds that share a frame.
func MergePointClouds(pcs ...pointcloud.PointCloud) (pointcloud.PointCloud, error) {
	totalSize := 0
	for _, pc := range pcs {
		totalSize += pc.Size()
	}

	big := pointcloud.NewBasicPointCloud(totalSize)

	for _, pc := range pcs {
		err := pointcloud.ApplyOffset(pc, nil, big)
		if err != nil {
			return nil, err
		}
	}

	return big, nil
}
