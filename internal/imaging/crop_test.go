package imaging_test

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framelens/orchestrator/internal/imaging"
)

func testFrameB64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodeBase64(t *testing.T) {
	b64 := testFrameB64(t, 64, 32)

	img, err := imaging.DecodeBase64(b64)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestDecodeBase64ToleratesDataURL(t *testing.T) {
	b64 := "data:image/png;base64," + testFrameB64(t, 8, 8)

	img, err := imaging.DecodeBase64(b64)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestDecodeBase64Garbage(t *testing.T) {
	_, err := imaging.DecodeBase64("!!not base64!!")
	assert.Error(t, err)

	_, err = imaging.DecodeBase64(base64.StdEncoding.EncodeToString([]byte("not an image")))
	assert.Error(t, err)
}

func TestCropScalesViewportCoordinates(t *testing.T) {
	img, err := imaging.DecodeBase64(testFrameB64(t, 200, 100))
	require.NoError(t, err)

	// Viewport is half the frame resolution, so the crop doubles in pixels.
	cropped, err := imaging.Crop(img, [4]float64{10, 10, 40, 20}, 100, 50)
	require.NoError(t, err)

	assert.Equal(t, 80, cropped.Bounds().Dx())
	assert.Equal(t, 40, cropped.Bounds().Dy())
}

func TestCropClampsToFrame(t *testing.T) {
	img, err := imaging.DecodeBase64(testFrameB64(t, 100, 100))
	require.NoError(t, err)

	cropped, err := imaging.Crop(img, [4]float64{80, 80, 50, 50}, 100, 100)
	require.NoError(t, err)

	assert.Equal(t, 20, cropped.Bounds().Dx())
	assert.Equal(t, 20, cropped.Bounds().Dy())
}

func TestCropOutsideFrameFails(t *testing.T) {
	img, err := imaging.DecodeBase64(testFrameB64(t, 100, 100))
	require.NoError(t, err)

	_, err = imaging.Crop(img, [4]float64{200, 200, 10, 10}, 100, 100)
	assert.Error(t, err)
}

func TestEncodeJPEG(t *testing.T) {
	img, err := imaging.DecodeBase64(testFrameB64(t, 32, 32))
	require.NoError(t, err)

	data, err := imaging.EncodeJPEG(img)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	decoded, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, decoded.Bounds().Dx())
}
