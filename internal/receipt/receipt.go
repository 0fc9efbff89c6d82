// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VisualFin Contributors

// Package receipt decodes uploaded receipt photos and prepares them for
// multimodal models.
package receipt

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"strings"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"golang.org/x/image/draw"

	vferr "github.com/visualfin/visualfin/pkg/errors"
)

const (
	DefaultMaxSide = 1600
	DefaultQuality = 90

	// MaxEncodedSize caps the base64 payload accepted from clients.
	MaxEncodedSize = 20 << 20

	// MaxPixels caps the declared dimensions of an upload so a small,
	// highly compressed file cannot expand into gigabytes on decode.
	MaxPixels = 50_000_000
)

// Image is a receipt ready to send to a model.
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// Base64 returns the image bytes in standard base64.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// DecodeBase64 accepts raw base64 or a data: URL and returns the bytes.
func DecodeBase64(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, vferr.New(vferr.CodeReceiptDecodeInvalid, "receipt image is empty")
	}
	if len(raw) > MaxEncodedSize {
		return nil, vferr.Errorf(vferr.CodeReceiptDecodeInvalid, "receipt image exceeds %d bytes", MaxEncodedSize)
	}
	if strings.HasPrefix(raw, "data:") {
		_, payload, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, vferr.New(vferr.CodeReceiptDecodeInvalid, "malformed data URL")
		}
		raw = payload
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// Some clients strip padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
	}
	if err != nil {
		return nil, vferr.Errorf(vferr.CodeReceiptDecodeInvalid, "decoding base64: %w", err)
	}
	return data, nil
}

// Decode parses a base64 payload and normalizes the image it holds.
func Decode(raw string, maxSide int) (Image, error) {
	data, err := DecodeBase64(raw)
	if err != nil {
		return Image{}, err
	}
	return Normalize(data, maxSide)
}

// Normalize decodes any supported format, scales the longest side down to
// maxSide and re-encodes as JPEG. maxSide <= 0 uses DefaultMaxSide.
func Normalize(data []byte, maxSide int) (Image, error) {
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, vferr.Errorf(vferr.CodeReceiptDecodeInvalid, "decoding image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Image{}, vferr.Errorf(vferr.CodeReceiptDecodeInvalid, "%s image has no pixels", format)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Image{}, vferr.Errorf(vferr.CodeReceiptDecodeInvalid,
			"%s image is %dx%d, over the %d pixel limit", format, cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, vferr.Errorf(vferr.CodeReceiptDecodeInvalid, "decoding image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return Image{}, vferr.Errorf(vferr.CodeReceiptDecodeInvalid, "%s image has no pixels", format)
	}

	if w > maxSide || h > maxSide {
		w, h = scaleDimensions(w, h, maxSide)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: DefaultQuality}); err != nil {
		return Image{}, vferr.Errorf(vferr.CodeReceiptEncodeFailure, "encoding jpeg: %w", err)
	}

	return Image{Data: buf.Bytes(), MIMEType: "image/jpeg", Width: w, Height: h}, nil
}

func scaleDimensions(w, h, maxSide int) (int, int) {
	if w >= h {
		return maxSide, max(1, int(float64(h)*float64(maxSide)/float64(w)))
	}
	return max(1, int(float64(w)*float64(maxSide)/float64(h))), maxSide
}
