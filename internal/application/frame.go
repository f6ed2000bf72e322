package app

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// captureQuality качество JPEG для снимков с камеры
const captureQuality = 95

// MirrorHorizontal отражает кадр по оси X, как превью фронтальной камеры.
func MirrorHorizontal(src image.Image) *image.RGBA {
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	w := b.Dx()
	stride := rgba.Stride
	for y := 0; y < b.Dy(); y++ {
		row := rgba.Pix[y*stride : y*stride+w*4]
		for l, r := 0, w-1; l < r; l, r = l+1, r-1 {
			li, ri := l*4, r*4
			for k := 0; k < 4; k++ {
				row[li+k], row[ri+k] = row[ri+k], row[li+k]
			}
		}
	}
	return rgba
}

// EncodeJPEG кодирует кадр в JPEG
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
