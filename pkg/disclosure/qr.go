package disclosure

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"net/url"

	"github.com/skip2/go-qrcode"
)

// QRCode is a base64-encoded PNG a cross-device session's holder app scans to retrieve the
// Authorization Request (§4.2 "cross device MUST arrive via a scanned QR code").
type QRCode struct {
	Base64PNG string `json:"base64_png"`
	URI       string `json:"uri"`
}

// GenerateQR renders uri as a QR code PNG at the given pixel size (0 selects a 256px default),
// for a cross-device session's initial display. Only SessionTypeCrossDevice sessions need one;
// same-device sessions redirect the holder app directly.
func GenerateQR(uri *url.URL, size int) (*QRCode, error) {
	if size == 0 {
		size = 256
	}

	qrCode, err := qrcode.New(uri.String(), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("creating qr code: %w", err)
	}

	var buf bytes.Buffer
	encoder := base64.NewEncoder(base64.StdEncoding, &buf)
	if err := png.Encode(encoder, qrCode.Image(size)); err != nil {
		return nil, fmt.Errorf("encoding qr code png: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("closing qr code encoder: %w", err)
	}

	return &QRCode{Base64PNG: buf.String(), URI: uri.String()}, nil
}
