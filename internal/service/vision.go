package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/api/option"

	"github.com/pageza/nutrisnap/backend/config"
	"github.com/pageza/nutrisnap/backend/internal/logger"
)

// DefaultMaxImageBytes is used when no limit is configured.
const DefaultMaxImageBytes int64 = 10 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// DetectionResult is the provider's description of the photographed meal.
type DetectionResult struct {
	Text string `json:"detected_text"`
}

// VisionClient turns raw image bytes into a dish description.
type VisionClient interface {
	Detect(ctx context.Context, image []byte) (DetectionResult, error)
}

// ValidateImage checks size and sniffed content type, returning the MIME type.
// It never touches the network.
func ValidateImage(image []byte, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if len(image) == 0 {
		return "", invalidInput("image", "empty upload")
	}
	if int64(len(image)) > maxBytes {
		return "", invalidInput("image", fmt.Sprintf("exceeds %d bytes", maxBytes))
	}
	mtype := mimetype.Detect(image).String()
	if i := strings.IndexByte(mtype, ';'); i >= 0 {
		mtype = mtype[:i]
	}
	if !allowedImageTypes[mtype] {
		return "", invalidInput("image", fmt.Sprintf("unsupported content type %s", mtype))
	}
	return mtype, nil
}

const visionSystemPrompt = "You are a food recognition expert specializing in Tunisian cuisine. " +
	"Identify the dish, visible ingredients, and estimate portion sizes. " +
	"Output ONLY a concise text description (e.g., 'Bowl of Lablabi with tuna and egg, approx 400g'). " +
	"Do not include explanations or additional commentary."

const visionUserPrompt = "Identify this dish and estimate the portion size. Provide a concise description only."

// ChatVisionClient describes images through a multimodal chat completions endpoint.
type ChatVisionClient struct {
	chat     *ChatClient
	maxBytes int64
}

func NewChatVisionClient(cfg config.ProviderConfig, maxBytes int64) *ChatVisionClient {
	return &ChatVisionClient{
		chat:     NewChatClient("vision", cfg),
		maxBytes: maxBytes,
	}
}

func (v *ChatVisionClient) Detect(ctx context.Context, image []byte) (DetectionResult, error) {
	mtype, err := ValidateImage(image, v.maxBytes)
	if err != nil {
		return DetectionResult{}, err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mtype, base64.StdEncoding.EncodeToString(image))
	messages := []Message{
		{Role: "system", Content: visionSystemPrompt},
		{Role: "user", Content: []ContentPart{
			{Type: "text", Text: visionUserPrompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
		}},
	}

	content, err := v.chat.Complete(ctx, messages, 0.3)
	if err != nil {
		return DetectionResult{}, err
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return DetectionResult{}, emptyResult("vision")
	}
	return DetectionResult{Text: text}, nil
}

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// GCPVisionClient describes images with Cloud Vision label detection.
type GCPVisionClient struct {
	log      *logger.Logger
	client   *vision.ImageAnnotatorClient
	annotate annotateFunc
	minScore float32
	maxBytes int64
}

// NewGCPVisionClient dials Cloud Vision. With no opts it uses application
// default credentials.
func NewGCPVisionClient(ctx context.Context, cfg config.VisionConfig, maxBytes int64, log *logger.Logger, opts ...option.ClientOption) (*GCPVisionClient, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	g := newGCPVisionClient(func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return c.BatchAnnotateImages(ctx, req)
	}, cfg.MinLabelScore, maxBytes, log)
	g.client = c
	return g, nil
}

func newGCPVisionClient(annotate annotateFunc, minScore float32, maxBytes int64, log *logger.Logger) *GCPVisionClient {
	return &GCPVisionClient{
		log:      log.With("service", "GCPVisionClient"),
		annotate: annotate,
		minScore: minScore,
		maxBytes: maxBytes,
	}
}

func (g *GCPVisionClient) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GCPVisionClient) Detect(ctx context.Context, image []byte) (DetectionResult, error) {
	if _, err := ValidateImage(image, g.maxBytes); err != nil {
		return DetectionResult{}, err
	}

	req := &visionpb.BatchAnnotateImagesRequest{Requests: []*visionpb.AnnotateImageRequest{{
		Image: &visionpb.Image{Content: image},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 10},
		},
	}}}

	resp, err := g.annotate(ctx, req)
	if err != nil {
		return DetectionResult{}, unavailable("gcp_vision", 0, fmt.Errorf("vision BatchAnnotateImages: %w", err))
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return DetectionResult{}, emptyResult("gcp_vision")
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return DetectionResult{}, unavailable("gcp_vision", 0, fmt.Errorf("vision annotate error: %s", r0.Error.Message))
	}

	var labels []string
	for _, l := range r0.LabelAnnotations {
		if l == nil || l.Score < g.minScore {
			continue
		}
		if d := strings.TrimSpace(l.Description); d != "" {
			labels = append(labels, d)
		}
	}
	if len(labels) == 0 {
		return DetectionResult{}, emptyResult("gcp_vision")
	}

	g.log.Debug("labels detected", "count", len(labels))
	return DetectionResult{Text: strings.Join(labels, ", ")}, nil
}

// GCPClientOptionsFromEnv reads service account credentials from the environment.
// An empty result means application default credentials.
func GCPClientOptionsFromEnv(getenv func(string) string) []option.ClientOption {
	creds := strings.TrimSpace(getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
