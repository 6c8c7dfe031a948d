package framestore

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/psantana5/lumirender/pkg/models"
)

// FloatToByte quantizes one channel in [0,1] to 8 bits
func FloatToByte(v float32) uint8 {
	if math.IsNaN(float64(v)) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}

// ByteToFloat expands one 8-bit channel to [0,1]
func ByteToFloat(b uint8) float32 {
	return float32(b) / 255
}

// ToImage converts an RGBA float buffer into an 8-bit NRGBA image
func ToImage(pixels []float32, width, height int) (*image.NRGBA, error) {
	if err := models.ValidateBuffer(pixels, width, height); err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, v := range pixels {
		img.Pix[i] = FloatToByte(v)
	}
	return img, nil
}

// FromImage converts any decoded image into an RGBA float buffer
func FromImage(img image.Image) ([]float32, int, int) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	pixels := make([]float32, 0, width*height*4)

	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Stride == width*4 && b.Min == (image.Point{}) {
		for _, p := range nrgba.Pix[:width*height*4] {
			pixels = append(pixels, ByteToFloat(p))
		}
		return pixels, width, height
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			pixels = append(pixels,
				ByteToFloat(c.R), ByteToFloat(c.G), ByteToFloat(c.B), ByteToFloat(c.A))
		}
	}
	return pixels, width, height
}

// EncodePNG writes an RGBA float buffer as an 8-bit PNG
func EncodePNG(w io.Writer, pixels []float32, width, height int) error {
	img, err := ToImage(pixels, width, height)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// DecodePNG reads a PNG into an RGBA float buffer
func DecodePNG(r io.Reader) ([]float32, int, int, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode png: %w", err)
	}
	pixels, width, height := FromImage(img)
	return pixels, width, height, nil
}
