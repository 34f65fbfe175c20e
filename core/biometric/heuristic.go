package biometric

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
)

// ErrBadImage marks input that cannot be decoded as PNG or JPEG. A
// malformed image is a validation error, never a liveness pass.
var ErrBadImage = errors.New("malformed image")

const minFaceDimension = 16

// LocalProvider scores samples with image-statistics heuristics. It needs
// no network and is the fallback when no external provider is configured.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

// luminance decodes the image into a grayscale plane.
func luminance(data []byte) ([][]float64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrBadImage
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, ErrBadImage
	}
	plane := make([][]float64, h)
	for y := 0; y < h; y++ {
		row := make([]float64, w)
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			row[x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
		plane[y] = row
	}
	return plane, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// textureScore is the normalized luminance standard deviation. Flat
// surfaces like a printed photo under glass score near zero.
func textureScore(plane [][]float64) float64 {
	var sum, count float64
	for _, row := range plane {
		for _, v := range row {
			sum += v
			count++
		}
	}
	mean := sum / count
	var variance float64
	for _, row := range plane {
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
	}
	variance /= count
	return clamp01(math.Sqrt(variance) / 128.0)
}

// motionScore measures edge density: the fraction of horizontally adjacent
// pixel pairs with a strong gradient.
func motionScore(plane [][]float64) float64 {
	var edges, pairs float64
	for _, row := range plane {
		for x := 1; x < len(row); x++ {
			pairs++
			if math.Abs(row[x]-row[x-1]) > 32 {
				edges++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return clamp01(edges / pairs * 4)
}

// blinkScore approximates an eye-aspect-ratio signal with the contrast
// inside the upper third of the frame, where eyes sit in a selfie capture.
func blinkScore(plane [][]float64) float64 {
	band := len(plane) / 3
	if band == 0 {
		band = 1
	}
	min, max := 255.0, 0.0
	for y := 0; y < band; y++ {
		for _, v := range plane[y] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return clamp01((max - min) / 255.0)
}

// histogram32 bins luminance into 32 buckets, normalized to sum 1.
func histogram32(plane [][]float64) [32]float64 {
	var hist [32]float64
	var count float64
	for _, row := range plane {
		for _, v := range row {
			bin := int(v / 8)
			if bin > 31 {
				bin = 31
			}
			hist[bin]++
			count++
		}
	}
	for i := range hist {
		hist[i] /= count
	}
	return hist
}

// histogramSimilarity is histogram intersection: 1.0 for identical
// distributions, 0.0 for disjoint ones.
func histogramSimilarity(a, b [32]float64) float64 {
	var sim float64
	for i := range a {
		sim += math.Min(a[i], b[i])
	}
	return sim
}

func (p *LocalProvider) ScoreFace(ctx context.Context, imageData, reference []byte) (FaceScore, error) {
	plane, err := luminance(imageData)
	if err != nil {
		return FaceScore{}, err
	}
	detected := len(plane) >= minFaceDimension && len(plane[0]) >= minFaceDimension && textureScore(plane) > 0.05
	score := FaceScore{Detected: detected}
	if len(reference) == 0 {
		return score, nil
	}
	refPlane, err := luminance(reference)
	if err != nil {
		return FaceScore{}, err
	}
	score.HasReference = true
	score.Match = histogramSimilarity(histogram32(plane), histogram32(refPlane))
	return score, nil
}

func (p *LocalProvider) ScoreLiveness(ctx context.Context, imageData []byte) (LivenessScore, error) {
	plane, err := luminance(imageData)
	if err != nil {
		return LivenessScore{}, err
	}
	return LivenessScore{
		Blink:   blinkScore(plane),
		Texture: textureScore(plane),
		Motion:  motionScore(plane),
	}, nil
}

var _ ScoreProvider = (*LocalProvider)(nil)
