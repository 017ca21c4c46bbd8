package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"truthline/internal/domain"
)

const (
	visionAPIBase    = "https://vision.googleapis.com/v1"
	visionMaxLabels  = 5
	visionMaxObjects = 3
)

type VisionConfig struct {
	APIBase string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// VisionProvider describes images with Google Cloud Vision. Text, labels
// and localized objects are requested separately so one failing feature
// does not hide the others.
type VisionProvider struct {
	apiBase string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

func NewVisionProvider(cfg VisionConfig) *VisionProvider {
	if cfg.APIBase == "" {
		cfg.APIBase = visionAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &VisionProvider{
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		apiKey:  cfg.APIKey,
		client:  SharedHTTPClient(cfg.Timeout),
		logger:  cfg.Logger,
	}
}

type visionRequest struct {
	Requests []visionImageRequest `json:"requests"`
}

type visionImageRequest struct {
	Image    visionImage     `json:"image"`
	Features []visionFeature `json:"features"`
}

type visionImage struct {
	Content string `json:"content"`
}

type visionFeature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type visionResponse struct {
	Responses []visionAnnotation `json:"responses"`
}

type visionAnnotation struct {
	TextAnnotations []struct {
		Description string `json:"description"`
	} `json:"textAnnotations"`
	LabelAnnotations           []visionScored `json:"labelAnnotations"`
	LocalizedObjectAnnotations []visionScored `json:"localizedObjectAnnotations"`
	Error                      *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// visionScored covers labels (description) and objects (name).
type visionScored struct {
	Description string  `json:"description"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
}

func (s visionScored) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Description
}

// Analyze returns the image description block. Sections whose call failed
// or found nothing are left out; the result is empty when all are.
func (v *VisionProvider) Analyze(ctx context.Context, image []byte) (string, error) {
	if v.apiKey == "" {
		return "", fmt.Errorf("vision: %w", domain.ErrNotConfigured)
	}
	content := base64.StdEncoding.EncodeToString(image)

	var sections []string
	var errs []error

	if ann, err := v.annotate(ctx, content, visionFeature{Type: "TEXT_DETECTION"}); err != nil {
		errs = append(errs, err)
	} else if len(ann.TextAnnotations) > 0 {
		if text := strings.TrimSpace(ann.TextAnnotations[0].Description); text != "" {
			sections = append(sections, "Text found in image:\n"+text)
		}
	}

	if ann, err := v.annotate(ctx, content, visionFeature{Type: "LABEL_DETECTION", MaxResults: visionMaxLabels}); err != nil {
		errs = append(errs, err)
	} else if list := formatScored(ann.LabelAnnotations, visionMaxLabels); list != "" {
		sections = append(sections, "Detected concepts: "+list)
	}

	if ann, err := v.annotate(ctx, content, visionFeature{Type: "OBJECT_LOCALIZATION", MaxResults: visionMaxObjects}); err != nil {
		errs = append(errs, err)
	} else if list := formatScored(ann.LocalizedObjectAnnotations, visionMaxObjects); list != "" {
		sections = append(sections, "Objects detected: "+list)
	}

	for _, err := range errs {
		v.logger.Warn("vision feature failed", "err", err)
	}
	if len(errs) == 3 {
		return "", errors.Join(errs...)
	}
	return strings.Join(sections, "\n\n"), nil
}

func (v *VisionProvider) annotate(ctx context.Context, content string, feature visionFeature) (*visionAnnotation, error) {
	body, err := json.Marshal(visionRequest{Requests: []visionImageRequest{{
		Image:    visionImage{Content: content},
		Features: []visionFeature{feature},
	}}})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	endpoint := v.apiBase + "/images:annotate?key=" + url.QueryEscape(v.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision %s: %w", feature.Type, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("vision "+feature.Type, resp.StatusCode, resp.Body)
	}

	var vr visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("decode vision %s: %w", feature.Type, err)
	}
	if len(vr.Responses) == 0 {
		return &visionAnnotation{}, nil
	}
	ann := vr.Responses[0]
	if ann.Error != nil {
		return nil, fmt.Errorf("vision %s: %s", feature.Type, ann.Error.Message)
	}
	return &ann, nil
}

func formatScored(items []visionScored, limit int) string {
	sorted := append([]visionScored(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	parts := make([]string, 0, len(sorted))
	for _, it := range sorted {
		if it.label() == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%.0f%%)", it.label(), it.Score*100))
	}
	return strings.Join(parts, ", ")
}
