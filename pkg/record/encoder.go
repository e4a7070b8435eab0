package record

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/disintegration/imaging"
)

// DefaultMaxSize is the default bound for the shorter image side.
const DefaultMaxSize = 600

// DefaultQuality is the default JPEG quality.
const DefaultQuality = 90

// DefaultFetchTimeout bounds the download of a URL source by Inline.
const DefaultFetchTimeout = 30 * time.Second

// Encoder turns records into the map form sent to the services. Local files
// and raw pixels are shrunk, JPEG encoded and sent as base64; URLs and base64
// data pass through. A record with "noresize": true keeps its original size:
// files are sent byte for byte.
type Encoder struct {
	// MaxSize bounds the image: when both sides exceed it, the image is
	// resized so its shorter side equals MaxSize. 0 disables resizing.
	MaxSize int

	// Quality is the JPEG quality (1-100). 0 means DefaultQuality.
	Quality int

	// Client downloads URL sources in Inline. nil uses a client with
	// DefaultFetchTimeout.
	Client *http.Client
}

// NewEncoder returns an encoder with the default bounds.
func NewEncoder() *Encoder {
	return &Encoder{MaxSize: DefaultMaxSize, Quality: DefaultQuality}
}

// Encode returns the wire form of r. The record fields are copied first and
// the source key is set last.
func (e *Encoder) Encode(ctx context.Context, r Record) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}

	switch s := r.Source.(type) {
	case URL:
		out[KeyURL] = s.Location
	case Base64:
		out[KeyBase64] = s.Data
	case File:
		data, err := e.encodeFile(s.Path, NoResize(r.Fields))
		if err != nil {
			return nil, err
		}
		out[KeyBase64] = data
	case RawPixels:
		data, err := e.encodeImage(s.Image, !NoResize(r.Fields))
		if err != nil {
			return nil, fmt.Errorf("encode image: %w", err)
		}
		out[KeyBase64] = data
	}

	return out, nil
}

// Inline is Encode for services that cannot download images themselves: a URL
// source is fetched and sent as base64 like a local file.
func (e *Encoder) Inline(ctx context.Context, r Record) (map[string]any, error) {
	u, ok := r.Source.(URL)
	if !ok {
		return e.Encode(ctx, r)
	}

	content, err := e.fetch(ctx, u.Location)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	if NoResize(r.Fields) {
		out[KeyBase64] = base64.StdEncoding.EncodeToString(content)
		return out, nil
	}

	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", u.Location, err)
	}
	data, err := e.encodeImage(img, true)
	if err != nil {
		return nil, fmt.Errorf("encode image %s: %w", u.Location, err)
	}
	out[KeyBase64] = data
	return out, nil
}

// NoResize reports whether the record fields ask to keep the original size.
func NoResize(fields map[string]any) bool {
	v, ok := fields[KeyNoResize].(bool)
	return ok && v
}

func (e *Encoder) encodeFile(path string, raw bool) (string, error) {
	if raw {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read image %s: %w", path, err)
		}
		return base64.StdEncoding.EncodeToString(content), nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image %s: %w", path, err)
	}
	data, err := e.encodeImage(img, true)
	if err != nil {
		return "", fmt.Errorf("encode image %s: %w", path, err)
	}
	return data, nil
}

func (e *Encoder) fetch(ctx context.Context, location string) ([]byte, error) {
	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", location, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image %s: %w: status %d", location, ErrFetch, resp.StatusCode)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", location, err)
	}
	return content, nil
}

// EncodeAll encodes every record, stopping at the first failure.
func (e *Encoder) EncodeAll(ctx context.Context, records []Record) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(records))
	for i, r := range records {
		m, err := e.Encode(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (e *Encoder) encodeImage(img image.Image, resize bool) (string, error) {
	if resize {
		img = e.shrink(img)
	}

	quality := e.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// shrink resizes img so its shorter side is MaxSize when both sides exceed it.
func (e *Encoder) shrink(img image.Image) image.Image {
	if e.MaxSize <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= e.MaxSize || h <= e.MaxSize {
		return img
	}
	if w > h {
		return imaging.Resize(img, 0, e.MaxSize, imaging.Lanczos)
	}
	return imaging.Resize(img, e.MaxSize, 0, imaging.Lanczos)
}
