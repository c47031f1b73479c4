package detection

type GPSCoordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BBox is [x_min, y_min, x_max, y_max] in pixels of the uploaded image.
type BBox [4]int

type Detection struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// RawBox is a single model output before formatting.
type RawBox struct {
	ClassID    int        `json:"cls"`
	Confidence float64    `json:"conf"`
	XYXY       [4]float64 `json:"xyxy"`
}

type Result struct {
	Success           bool            `json:"success"`
	Image             string          `json:"image,omitempty"`
	Detections        []Detection     `json:"detections"`
	GPSCoordinates    *GPSCoordinates `json:"gps_coordinates"`
	Count             int             `json:"count"`
	AverageConfidence float64         `json:"average_confidence"`
	PlasticLevel      PlasticLevel    `json:"plastic_level"`
	Error             string          `json:"error,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type Status struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelPath   string `json:"model_path"`
}

type PlasticLevel string

const (
	PlasticLevelLow    PlasticLevel = "low"
	PlasticLevelMedium PlasticLevel = "medium"
	PlasticLevelHigh   PlasticLevel = "high"
)
