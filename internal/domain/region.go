package domain

// Rect is an axis aligned rectangle. A Point rect has no area and is drawn as a marker.
type Rect struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Point bool    `json:"point,omitempty"`
}

// RegionOfInterest is a user drawn region saved with a comment. Region holds x, y, w and h as percentages of the
// canvas size.
type RegionOfInterest struct {
	Region  [4]float64 `json:"region"`
	Comment string     `json:"comment"`
}
