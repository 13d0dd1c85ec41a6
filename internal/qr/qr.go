// Package qr renders QR codes as inline PNG data URIs.
package qr

import (
	"encoding/base64"
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Size is the edge length of generated images, in pixels.
const Size = 256

var ErrEmptyContent = errors.New("qr content is empty")

// DataURI encodes content as a QR code and returns it as a data:image/png URI.
func DataURI(content string) (string, error) {
	if content == "" {
		return "", ErrEmptyContent
	}

	png, err := qrcode.Encode(content, qrcode.Medium, Size)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
