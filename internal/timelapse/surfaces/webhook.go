package surfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/precip-timelapse/internal/timelapse"
)

// WebhookSurface forwards layer and label operations to a remote map renderer.
// It implements timelapse.MapLayerPort and timelapse.OverlayLabelPort.
//
// Renderer contract, relative to the base URL:
//
//	POST   /layers        {"id","tileUrl","tileSize"}  201, 409 on duplicate id
//	                      retried after 5xx; 409 on a retry means an earlier attempt landed
//	DELETE /layers/{id}                                204, 404 when absent
//	GET    /layers        {"ids": [...]}
//	PUT    /label         {"anchor"}                    create if missing
//	PATCH  /label         {"text"}                      404 when no label
//	DELETE /label                                      204, 404 when absent
type WebhookSurface struct {
	name    string
	baseURL string
	anchor  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewWebhookSurface creates a surface that talks to the renderer at baseURL.
func NewWebhookSurface(client *http.Client, baseURL, anchor string) *WebhookSurface {
	return &WebhookSurface{
		name:    "webhook",
		baseURL: strings.TrimRight(baseURL, "/"),
		anchor:  anchor,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 200 * time.Millisecond,
				MaxInterval:     2 * time.Second,
			},
		},
		circuit: newBreaker("map-surface-webhook"),
	}
}

// AddLayer implements timelapse.MapLayerPort. A conflict on a retried POST is
// success: the renderer stored the layer on an attempt whose answer was lost.
func (w *WebhookSurface) AddLayer(ctx context.Context, layer timelapse.Layer) error {
	attempts, err := w.do(ctx, http.MethodPost, "/layers", layer, nil)
	if se, ok := asStatusError(err); ok && se.Code == http.StatusConflict {
		if attempts > 1 {
			return nil
		}
		return fmt.Errorf("%w: %s", timelapse.ErrLayerExists, layer.ID)
	}
	return err
}

// RemoveLayer implements timelapse.MapLayerPort.
func (w *WebhookSurface) RemoveLayer(ctx context.Context, id string) error {
	return ignoreNotFound(w.send(ctx, http.MethodDelete, "/layers/"+url.PathEscape(id), nil, nil))
}

// ListLayerIDs implements timelapse.MapLayerPort.
func (w *WebhookSurface) ListLayerIDs(ctx context.Context) ([]string, error) {
	var payload struct {
		IDs []string `json:"ids"`
	}
	if err := w.send(ctx, http.MethodGet, "/layers", nil, &payload); err != nil {
		return nil, err
	}
	return payload.IDs, nil
}

// Ensure implements timelapse.OverlayLabelPort.
func (w *WebhookSurface) Ensure(ctx context.Context) error {
	return w.send(ctx, http.MethodPut, "/label", map[string]string{"anchor": w.anchor}, nil)
}

// Update implements timelapse.OverlayLabelPort.
func (w *WebhookSurface) Update(ctx context.Context, text string) error {
	return ignoreNotFound(w.send(ctx, http.MethodPatch, "/label", map[string]string{"text": text}, nil))
}

// Remove implements timelapse.OverlayLabelPort.
func (w *WebhookSurface) Remove(ctx context.Context) error {
	return ignoreNotFound(w.send(ctx, http.MethodDelete, "/label", nil, nil))
}

func (w *WebhookSurface) send(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := w.do(ctx, method, path, body, out)
	return err
}

// do performs one logical call and reports how many HTTP attempts it took.
func (w *WebhookSurface) do(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var encoded []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		encoded = b
	}

	attempts := 0
	buildRequest := func() (*http.Request, error) {
		attempts++
		var req *http.Request
		var err error
		if encoded != nil {
			req, err = http.NewRequest(method, w.baseURL+path, bytes.NewReader(encoded))
		} else {
			req, err = http.NewRequest(method, w.baseURL+path, nil)
		}
		if err != nil {
			return nil, err
		}
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, w.httpCfg, w.circuit, buildRequest)
	if err != nil {
		return attempts, fmt.Errorf("%s %s %s: %w", w.name, method, path, err)
	}
	defer resp.Body.Close()

	if out == nil {
		return attempts, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return attempts, fmt.Errorf("%s %s %s: decode: %w", w.name, method, path, err)
	}
	return attempts, nil
}

func ignoreNotFound(err error) error {
	if se, ok := asStatusError(err); ok && se.Code == http.StatusNotFound {
		return nil
	}
	return err
}

func asStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
