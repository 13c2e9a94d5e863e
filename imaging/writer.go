package imaging

import "github.com/nygctech/imagecore/internal/logs"

// TiffMetadata is the image metadata an external OME-TIFF writer is
// expected to embed. The resolution formula and axis ordering are carried
// over unchanged from the original instrument's save routine; the encoder
// itself is an external collaborator, not implemented here.
type TiffMetadata struct {
	Axes            string // "CYX"
	SignificantBits int    // 12
	ResolutionXY    float64
	State           State
}

// NewTiffMetadata builds the metadata block for img/state using the
// original instrument's constants.
func NewTiffMetadata(state State) TiffMetadata {
	return TiffMetadata{
		Axes:            "CYX",
		SignificantBits: 12,
		ResolutionXY:    1.0 / (0.375e-4),
		State:           state,
	}
}

// ImageWriter is the external collaborator boundary for persisting an
// Image as OME-TIFF; writing itself is out of scope for this module.
type ImageWriter interface {
	Write(path string, img Image, meta TiffMetadata) error
}

// SaveImage delegates to w, logging and swallowing any failure the way the
// original instrument's save_image does (the captured data already exists
// in memory; a failed write should not abort the acquisition that produced
// it).
func SaveImage(w ImageWriter, path string, img Image, state State) {
	if err := w.Write(path, img, NewTiffMetadata(state)); err != nil {
		logs.For("imaging").Error("failed to save image", "path", path, "err", err)
	}
}
