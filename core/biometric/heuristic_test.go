package biometric

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// uniformImage is a flat gray frame: no texture, no edges, no contrast.
func uniformImage(t *testing.T, size int) []byte {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	return encodePNG(t, img)
}

// checkerboardImage alternates black and white per pixel: maximum texture,
// edge density and contrast.
func checkerboardImage(t *testing.T, size int) []byte {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x+y)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return encodePNG(t, img)
}

func TestLocalLivenessUniformImageFails(t *testing.T) {
	v := NewVerifier(NewLocalProvider(), 0.80, 0.70)
	ok, msg := v.DetectLiveness(context.Background(), uniformImage(t, 64))
	require.False(t, ok, msg)
}

func TestLocalLivenessTexturedImagePasses(t *testing.T) {
	v := NewVerifier(NewLocalProvider(), 0.80, 0.70)
	ok, msg := v.DetectLiveness(context.Background(), checkerboardImage(t, 64))
	require.True(t, ok, msg)
}

func TestLocalFaceMatchIdenticalImages(t *testing.T) {
	p := NewLocalProvider()
	img := checkerboardImage(t, 64)
	score, err := p.ScoreFace(context.Background(), img, img)
	require.NoError(t, err)
	require.True(t, score.Detected)
	require.True(t, score.HasReference)
	require.InDelta(t, 1.0, score.Match, 1e-9)
}

func TestLocalFaceMatchDisjointImages(t *testing.T) {
	p := NewLocalProvider()
	// All-dark vs all-bright occupies disjoint histogram bins.
	dark := encodePNG(t, image.NewGray(image.Rect(0, 0, 64, 64)))
	bright := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			bright.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	score, err := p.ScoreFace(context.Background(), dark, encodePNG(t, bright))
	require.NoError(t, err)
	require.InDelta(t, 0.0, score.Match, 1e-9)
}

func TestLocalFaceUndetectedOnFlatImage(t *testing.T) {
	v := NewVerifier(NewLocalProvider(), 0.80, 0.70)
	ok, msg := v.ValidateFace(context.Background(), uniformImage(t, 64), nil)
	require.False(t, ok)
	require.Contains(t, msg, "no face detected")
}

func TestLocalFaceUndetectedOnTinyImage(t *testing.T) {
	p := NewLocalProvider()
	score, err := p.ScoreFace(context.Background(), checkerboardImage(t, 8), nil)
	require.NoError(t, err)
	require.False(t, score.Detected)
}

func TestMalformedImageFailsValidation(t *testing.T) {
	v := NewVerifier(NewLocalProvider(), 0.80, 0.70)
	garbage := []byte("definitely not a png")

	ok, _ := v.ValidateFace(context.Background(), garbage, nil)
	require.False(t, ok)
	ok, _ = v.DetectLiveness(context.Background(), garbage)
	require.False(t, ok)

	_, err := NewLocalProvider().ScoreLiveness(context.Background(), garbage)
	require.ErrorIs(t, err, ErrBadImage)
}
