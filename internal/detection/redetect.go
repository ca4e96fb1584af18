package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/facadeworks/takeoff/internal/models"
)

// MLClient invokes the external facade-detection model for one page
// image and returns fresh detections (page id and status unset).
type MLClient interface {
	Detect(ctx context.Context, imageURL string) ([]models.Detection, error)
}

// HTTPMLClient calls the detection endpoint over HTTP. The endpoint
// accepts {"image_url": ...} and returns a JSON detection list.
type HTTPMLClient struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPMLClient(endpoint string) *HTTPMLClient {
	return &HTTPMLClient{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 120 * time.Second},
	}
}

type mlDetection struct {
	Class      string          `json:"class"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Width      float64         `json:"width"`
	Height     float64         `json:"height"`
	Polygon    []models.Vertex `json:"polygon,omitempty"`
	IsTriangle bool            `json:"is_triangle"`
	Confidence float64         `json:"confidence"`
}

func (c *HTTPMLClient) Detect(ctx context.Context, imageURL string) ([]models.Detection, error) {
	body, err := json.Marshal(map[string]string{"image_url": imageURL})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection endpoint returned %d", resp.StatusCode)
	}
	var payload struct {
		Detections []mlDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode detection response: %w", err)
	}
	out := make([]models.Detection, 0, len(payload.Detections))
	for _, m := range payload.Detections {
		conf := m.Confidence
		d := models.Detection{
			Class:      m.Class,
			X:          m.X,
			Y:          m.Y,
			WidthPx:    m.Width,
			HeightPx:   m.Height,
			IsTriangle: m.IsTriangle,
			Confidence: &conf,
		}
		if m.Class == "" {
			d.Class = models.ClassUnclassified
		}
		if err := d.SetPolygon(m.Polygon); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
