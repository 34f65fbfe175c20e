package biometric

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Result is the outcome of one verification attempt. Results are never
// retroactively altered; a new attempt produces a new result and old ones
// age out of the cache.
type Result struct {
	Verified      bool      `json:"verified"`
	Message       string    `json:"message"`
	FaceMatch     float64   `json:"face_match,omitempty"`
	BlinkScore    float64   `json:"blink_score,omitempty"`
	TextureScore  float64   `json:"texture_score,omitempty"`
	MotionScore   float64   `json:"motion_score,omitempty"`
	LivenessScore float64   `json:"liveness_score,omitempty"`
	VerifiedAt    time.Time `json:"verified_at"`
}

// Verifier decides whether a captured identity sample is both a genuine
// match and a live subject. Scoring is delegated to a ScoreProvider; the
// verifier owns thresholds and caching.
type Verifier struct {
	provider          ScoreProvider
	cache             Cache // nil disables caching
	faceThreshold     float64
	livenessThreshold float64
	ttl               time.Duration
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithCache enables result caching with the given TTL.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(v *Verifier) {
		v.cache = cache
		v.ttl = ttl
	}
}

// NewVerifier creates a verifier with the given provider and thresholds.
func NewVerifier(provider ScoreProvider, faceThreshold, livenessThreshold float64, opts ...Option) *Verifier {
	v := &Verifier{
		provider:          provider,
		faceThreshold:     faceThreshold,
		livenessThreshold: livenessThreshold,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func contentKey(prefix string, image, reference []byte) string {
	sum := sha256.Sum256(image)
	key := prefix + ":" + hex.EncodeToString(sum[:])
	if len(reference) > 0 {
		refSum := sha256.Sum256(reference)
		key += ":" + hex.EncodeToString(refSum[:])
	}
	return key
}

// ValidateFace checks that image contains a face and, when a reference
// image is supplied, that the two faces match above the configured
// threshold. Provider transport errors are surfaced as a failed validation
// with the provider's message; they are not retried here.
func (v *Verifier) ValidateFace(ctx context.Context, image, reference []byte) (bool, string) {
	key := contentKey("face", image, reference)
	if cached, ok := v.cacheGet(ctx, key); ok {
		return cached.Verified, cached.Message
	}

	score, err := v.provider.ScoreFace(ctx, image, reference)
	if err != nil {
		// Transport and decode errors are not cached: the next attempt may
		// hit a healthy provider.
		return false, fmt.Sprintf("face validation failed: %v", err)
	}

	result := Result{VerifiedAt: time.Now().UTC(), FaceMatch: score.Match}
	switch {
	case !score.Detected:
		result.Message = "no face detected"
	case score.HasReference && score.Match < v.faceThreshold:
		result.Message = fmt.Sprintf("face match %.2f below threshold %.2f", score.Match, v.faceThreshold)
	default:
		result.Verified = true
		result.Message = "face validated"
	}
	v.cacheSet(ctx, key, result)
	return result.Verified, result.Message
}

// DetectLiveness combines blink, texture and motion sub-signals into an
// unweighted average and passes only when the average is strictly above the
// liveness threshold. A score exactly at the threshold fails, on every run.
func (v *Verifier) DetectLiveness(ctx context.Context, image []byte) (bool, string) {
	key := contentKey("liveness", image, nil)
	if cached, ok := v.cacheGet(ctx, key); ok {
		return cached.Verified, cached.Message
	}

	score, err := v.provider.ScoreLiveness(ctx, image)
	if err != nil {
		return false, fmt.Sprintf("liveness detection failed: %v", err)
	}

	combined := (score.Blink + score.Texture + score.Motion) / 3.0
	result := Result{
		VerifiedAt:    time.Now().UTC(),
		BlinkScore:    score.Blink,
		TextureScore:  score.Texture,
		MotionScore:   score.Motion,
		LivenessScore: combined,
	}
	if combined > v.livenessThreshold {
		result.Verified = true
		result.Message = fmt.Sprintf("liveness score %.2f", combined)
	} else {
		result.Message = fmt.Sprintf("liveness score %.2f not above threshold %.2f", combined, v.livenessThreshold)
	}
	v.cacheSet(ctx, key, result)
	return result.Verified, result.Message
}

// LivenessResult runs DetectLiveness and returns the full scored result,
// bypassing nothing: cache semantics are identical to DetectLiveness.
func (v *Verifier) LivenessResult(ctx context.Context, image []byte) (Result, error) {
	key := contentKey("liveness", image, nil)
	if cached, ok := v.cacheGet(ctx, key); ok {
		return cached, nil
	}
	score, err := v.provider.ScoreLiveness(ctx, image)
	if err != nil {
		return Result{}, err
	}
	combined := (score.Blink + score.Texture + score.Motion) / 3.0
	result := Result{
		VerifiedAt:    time.Now().UTC(),
		BlinkScore:    score.Blink,
		TextureScore:  score.Texture,
		MotionScore:   score.Motion,
		LivenessScore: combined,
		Verified:      combined > v.livenessThreshold,
	}
	v.cacheSet(ctx, key, result)
	return result, nil
}

func (v *Verifier) cacheGet(ctx context.Context, key string) (Result, bool) {
	if v.cache == nil {
		return Result{}, false
	}
	return v.cache.Get(ctx, key)
}

func (v *Verifier) cacheSet(ctx context.Context, key string, r Result) {
	if v.cache == nil {
		return
	}
	v.cache.Set(ctx, key, r, v.ttl)
}
