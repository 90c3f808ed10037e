// Bitmap of units in use

package common

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/bootfat"
)

// UnitID is the index of a unit (block or cluster) in a UsageMap.
type UnitID uint

// UsageMap records which units of a volume are in use. Drivers build one by
// scanning their allocation structures.
type UsageMap struct {
	InUse      bitmap.Bitmap
	TotalUnits uint
}

// NewUsageMap creates a map of `totalUnits` units, all of them free.
func NewUsageMap(totalUnits uint) UsageMap {
	return UsageMap{
		InUse:      bitmap.New(int(totalUnits)),
		TotalUnits: totalUnits,
	}
}

// Set marks `unit` as in use or free.
func (m *UsageMap) Set(unit UnitID, inUse bool) error {
	if uint(unit) >= m.TotalUnits {
		return bootfat.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("invalid unit id: %d not in range [0, %d)", unit, m.TotalUnits))
	}
	m.InUse.Set(int(unit), inUse)
	return nil
}

// IsInUse returns true if `unit` is in use. Units outside the map are never in
// use.
func (m *UsageMap) IsInUse(unit UnitID) bool {
	if uint(unit) >= m.TotalUnits {
		return false
	}
	return m.InUse.Get(int(unit))
}

// LongestRun returns the start and length of the longest run of units with the
// given value. The length is 0 if there are none.
func (m *UsageMap) LongestRun(value bool) (UnitID, uint) {
	bestStart, bestSize := UnitID(0), uint(0)
	runStart, runSize := UnitID(0), uint(0)

	for i := uint(0); i < m.TotalUnits; i++ {
		if m.InUse.Get(int(i)) != value {
			runSize = 0
			continue
		}

		if runSize == 0 {
			runStart = UnitID(i)
		}
		runSize++
		if runSize > bestSize {
			bestStart, bestSize = runStart, runSize
		}
	}
	return bestStart, bestSize
}
