package biometric

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FaceScore is a provider's raw answer for a face check. Match is only
// meaningful when HasReference is set.
type FaceScore struct {
	Detected     bool
	HasReference bool
	Match        float64
}

// LivenessScore carries the three independent sub-signals, each normalized
// to [0,1].
type LivenessScore struct {
	Blink   float64
	Texture float64
	Motion  float64
}

// ScoreProvider produces biometric scores. Two implementations exist: a
// remote HTTP provider used when an API key is configured, and the local
// heuristic fallback. The fallback is a deliberate degrade path, not an
// error.
type ScoreProvider interface {
	ScoreFace(ctx context.Context, image, reference []byte) (FaceScore, error)
	ScoreLiveness(ctx context.Context, image []byte) (LivenessScore, error)
}

// RemoteProvider delegates scoring to an external verification API.
type RemoteProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteProvider builds a provider client with a request timeout.
func NewRemoteProvider(baseURL, apiKey string, timeout time.Duration) *RemoteProvider {
	return &RemoteProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *RemoteProvider) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("biometric provider unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("biometric provider returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *RemoteProvider) ScoreFace(ctx context.Context, image, reference []byte) (FaceScore, error) {
	payload := map[string]string{"image": base64.StdEncoding.EncodeToString(image)}
	if len(reference) > 0 {
		payload["reference"] = base64.StdEncoding.EncodeToString(reference)
	}
	var body struct {
		Detected bool    `json:"detected"`
		Match    float64 `json:"match"`
	}
	if err := p.post(ctx, "/v1/face", payload, &body); err != nil {
		return FaceScore{}, err
	}
	return FaceScore{
		Detected:     body.Detected,
		HasReference: len(reference) > 0,
		Match:        body.Match,
	}, nil
}

func (p *RemoteProvider) ScoreLiveness(ctx context.Context, image []byte) (LivenessScore, error) {
	payload := map[string]string{"image": base64.StdEncoding.EncodeToString(image)}
	var body struct {
		Blink   float64 `json:"blink"`
		Texture float64 `json:"texture"`
		Motion  float64 `json:"motion"`
	}
	if err := p.post(ctx, "/v1/liveness", payload, &body); err != nil {
		return LivenessScore{}, err
	}
	return LivenessScore(body), nil
}

var _ ScoreProvider = (*RemoteProvider)(nil)
