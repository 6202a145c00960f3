package rimage

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ReadImageFromFile decodes a PNG or JPEG (honouring EXIF orientation) into a frame. When the
// lens size differs from the file, the file is resized to the lens.
func ReadImageFromFile(path string, lens Lens) (*Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read image %q", path)
	}
	if lens.Width > 0 && lens.Height > 0 && (img.Bounds().Dx() != lens.Width || img.Bounds().Dy() != lens.Height) {
		img = imaging.Resize(img, lens.Width, lens.Height, imaging.Lanczos)
	}
	return NewImageFromStdImage(img, lens), nil
}

// WriteImageToFile encodes img using the format implied by the file extension.
func WriteImageToFile(path string, img image.Image) error {
	return errors.Wrapf(imaging.Save(img, path), "cannot write image %q", path)
}
