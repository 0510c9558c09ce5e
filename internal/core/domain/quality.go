package domain

const (
	MinAdequateWidth  = 600
	MinAdequateHeight = 600
	MaxDocumentBytes  = 10 * 1024 * 1024
)

var supportedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"tiff": true,
}

type QualityReport struct {
	Resolution ResolutionQuality `json:"resolution"`
	Format     FormatQuality     `json:"format"`
	Size       SizeQuality       `json:"size"`
}

type ResolutionQuality struct {
	Width      int  `json:"width"`
	Height     int  `json:"height"`
	IsAdequate bool `json:"isAdequate"`
}

type FormatQuality struct {
	Type        string `json:"type"`
	IsSupported bool   `json:"isSupported"`
}

type SizeQuality struct {
	Bytes          int64 `json:"bytes"`
	IsWithinLimits bool  `json:"isWithinLimits"`
}

// AssessQuality derives the quality flags for an image's metadata.
func AssessQuality(img DocumentImage) QualityReport {
	return QualityReport{
		Resolution: ResolutionQuality{
			Width:      img.Width,
			Height:     img.Height,
			IsAdequate: img.Width >= MinAdequateWidth && img.Height >= MinAdequateHeight,
		},
		Format: FormatQuality{
			Type:        img.Format,
			IsSupported: supportedFormats[img.Format],
		},
		Size: SizeQuality{
			Bytes:          img.SizeBytes,
			IsWithinLimits: img.SizeBytes < MaxDocumentBytes,
		},
	}
}
