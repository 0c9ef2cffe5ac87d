// Package imaging decodes captured frames and crops the user's selection
// out of them for the ingest path.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"
)

const jpegQuality = 85

// DecodeBase64 decodes a base64 frame, tolerating data-URL prefixes.
func DecodeBase64(b64 string) (image.Image, error) {
	if idx := strings.Index(b64, ","); idx >= 0 && strings.HasPrefix(b64, "data:") {
		b64 = b64[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 frame: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Crop cuts the bbox [x, y, w, h] out of the frame. The bbox is expressed
// in viewport coordinates and scaled to the frame's pixel dimensions, then
// clamped to the frame.
func Crop(frame image.Image, bbox [4]float64, viewportW, viewportH float64) (image.Image, error) {
	bounds := frame.Bounds()
	scaleX := float64(bounds.Dx()) / viewportW
	scaleY := float64(bounds.Dy()) / viewportH

	x0 := bounds.Min.X + int(bbox[0]*scaleX)
	y0 := bounds.Min.Y + int(bbox[1]*scaleY)
	x1 := x0 + int(bbox[2]*scaleX)
	y1 := y0 + int(bbox[3]*scaleY)

	rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("selection falls outside the frame")
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := frame.(subImager); ok {
		return si.SubImage(rect), nil
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, frame.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out, nil
}

// EncodeJPEG re-encodes an image for blob storage.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
