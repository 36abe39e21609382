package transport

import (
	"encoding/base64"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// QRRenderer turns a raw QR credential into something a browser can show
type QRRenderer func(payload string) (string, error)

// RenderQRDataURL encodes the payload as a PNG data URL
func RenderQRDataURL(payload string) (string, error) {
	if payload == "" {
		return "", errors.New("empty QR payload")
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("encode QR: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
