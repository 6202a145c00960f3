// Package rimage holds the camera frame representation used by the vision pipeline along with its
// lens model and drawing helpers.
package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"

	"go.viam.com/fieldvision/utils"
)

const bytesPerPixel = 3

// Image is a full resolution Y'CbCr frame with one sample of each channel per pixel, as produced
// by the robot's camera driver. It is an image.Image so it can be drawn and encoded directly.
// Images handed to the pipeline are not modified afterwards.
type Image struct {
	pix           []uint8
	width, height int
	Lens          Lens
}

// NewImage returns a black frame.
func NewImage(width, height int, lens Lens) *Image {
	pix := make([]uint8, width*height*bytesPerPixel)
	for i := 1; i < len(pix); i += bytesPerPixel {
		pix[i] = 128
		pix[i+1] = 128
	}
	return &Image{pix: pix, width: width, height: height, Lens: lens}
}

// NewImageFromBuffer wraps an interleaved Y, Cb, Cr buffer.
func NewImageFromBuffer(width, height int, pix []uint8, lens Lens) (*Image, error) {
	if len(pix) != width*height*bytesPerPixel {
		return nil, errors.Errorf("buffer of %d bytes does not hold a %dx%d YCbCr image", len(pix), width, height)
	}
	return &Image{pix: pix, width: width, height: height, Lens: lens}, nil
}

// NewImageFromStdImage converts any image.Image into a frame. Conversion is done in parallel.
func NewImageFromStdImage(img image.Image, lens Lens) *Image {
	bounds := img.Bounds()
	out := &Image{
		pix:    make([]uint8, bounds.Dx()*bounds.Dy()*bytesPerPixel),
		width:  bounds.Dx(),
		height: bounds.Dy(),
		Lens:   lens,
	}
	utils.ParallelForEachPixel(image.Pt(out.width, out.height), func(x, y int) {
		c := color.YCbCrModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.YCbCr)
		out.SetYCbCr(x, y, c.Y, c.Cb, c.Cr)
	})
	return out
}

// Width of the frame in pixels.
func (i *Image) Width() int {
	return i.width
}

// Height of the frame in pixels.
func (i *Image) Height() int {
	return i.height
}

// In reports whether (x, y) is inside the frame.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

func (i *Image) k(x, y int) int {
	return ((y * i.width) + x) * bytesPerPixel
}

// YCbCr returns the raw sample at (x, y).
func (i *Image) YCbCr(x, y int) (uint8, uint8, uint8) {
	k := i.k(x, y)
	return i.pix[k], i.pix[k+1], i.pix[k+2]
}

// SetYCbCr writes a raw sample at (x, y).
func (i *Image) SetYCbCr(x, y int, yy, cb, cr uint8) {
	k := i.k(x, y)
	i.pix[k] = yy
	i.pix[k+1] = cb
	i.pix[k+2] = cr
}

// Set writes any color at (x, y).
func (i *Image) Set(x, y int, c color.Color) {
	yc := color.YCbCrModel.Convert(c).(color.YCbCr)
	i.SetYCbCr(x, y, yc.Y, yc.Cb, yc.Cr)
}

// Fill paints every pixel of r that lies inside the frame.
func (i *Image) Fill(r image.Rectangle, c color.Color) {
	r = r.Intersect(i.Bounds())
	yc := color.YCbCrModel.Convert(c).(color.YCbCr)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i.SetYCbCr(x, y, yc.Y, yc.Cb, yc.Cr)
		}
	}
}

// ColorModel is color.YCbCrModel.
func (i *Image) ColorModel() color.Model {
	return color.YCbCrModel
}

// Bounds returns the frame rectangle anchored at the origin.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// At returns the color.YCbCr at (x, y), or black outside the frame.
func (i *Image) At(x, y int) color.Color {
	if !i.In(x, y) {
		return color.YCbCr{Cb: 128, Cr: 128}
	}
	yy, cb, cr := i.YCbCr(x, y)
	return color.YCbCr{Y: yy, Cb: cb, Cr: cr}
}
