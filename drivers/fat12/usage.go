package fat12

import (
	c "github.com/dargueta/bootfat/drivers/common"
)

// ClusterUsage summarizes how the clusters of the data region are allocated.
type ClusterUsage struct {
	// Map has one unit per data cluster, starting with cluster 2 at unit 0. Bad
	// clusters are marked as in use.
	Map          c.UsageMap
	DataClusters uint
	// Used is the number of clusters allocated to files and directories.
	Used           uint
	Bad            uint
	LongestFreeRun uint
}

// Free returns the number of clusters available for new data.
func (u ClusterUsage) Free() uint {
	return u.DataClusters - u.Used - u.Bad
}

// ScanClusterUsage reads the FAT entries of the first `dataClusters` data
// clusters. Clusters the FAT has no entry for are left out.
func (t Table) ScanClusterUsage(dataClusters uint) (ClusterUsage, error) {
	entryCount := t.EntryCount()
	if entryCount < firstDataCluster {
		dataClusters = 0
	} else if dataClusters > entryCount-firstDataCluster {
		dataClusters = entryCount - firstDataCluster
	}

	usage := ClusterUsage{
		Map:          c.NewUsageMap(dataClusters),
		DataClusters: dataClusters,
	}

	for i := uint(0); i < dataClusters; i++ {
		value, err := t.Entry(c.ClusterID(i + firstDataCluster))
		if err != nil {
			return ClusterUsage{}, err
		}
		if value == FreeCluster {
			continue
		}

		err = usage.Map.Set(c.UnitID(i), true)
		if err != nil {
			return ClusterUsage{}, err
		}
		if value == BadCluster {
			usage.Bad++
		} else {
			usage.Used++
		}
	}

	_, usage.LongestFreeRun = usage.Map.LongestRun(false)
	return usage, nil
}
