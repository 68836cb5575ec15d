package service

import (
	"fmt"

	"github.com/nitro/iiifviewer/internal/domain"
)

// RegionStore holds the regions of interest of a session by canvas index. Entries are only ever appended.
type RegionStore map[int][]domain.RegionOfInterest

// Record appends a region to the canvas and returns its index.
func (rs *RegionStore) Record(canvasIndex int, percentRegion [4]float64, comment string) int {
	if *rs == nil {
		*rs = make(RegionStore)
	}
	(*rs)[canvasIndex] = append((*rs)[canvasIndex], domain.RegionOfInterest{Region: percentRegion, Comment: comment})
	return len((*rs)[canvasIndex]) - 1
}

// Get returns a stored region.
func (rs RegionStore) Get(canvasIndex, roiIndex int) (domain.RegionOfInterest, error) {
	regions, ok := rs[canvasIndex]
	if !ok {
		return domain.RegionOfInterest{}, newError(
			ErrNoSuchRegion, fmt.Errorf("no region of interest stored for canvas %d", canvasIndex),
		)
	}
	if roiIndex < 0 || roiIndex >= len(regions) {
		return domain.RegionOfInterest{}, newError(
			ErrNoSuchRegion, fmt.Errorf("canvas %d has no region of interest %d", canvasIndex, roiIndex),
		)
	}
	return regions[roiIndex], nil
}

// List returns the regions of a canvas in recording order.
func (rs RegionStore) List(canvasIndex int) []domain.RegionOfInterest {
	return rs[canvasIndex]
}

// RegionOfInterestURL builds the Image API URL of a stored region.
func (r Resolver) RegionOfInterestURL(
	store RegionStore, canvasIndex, roiIndex int, serviceBaseURL string, p ImageParams,
) (string, error) {
	roi, err := store.Get(canvasIndex, roiIndex)
	if err != nil {
		return "", err
	}
	p.Region = PercentRegion(roi.Region)
	return r.BuildImageURL(serviceBaseURL, p)
}
