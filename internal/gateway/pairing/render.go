package pairing

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// qrImageSize is the edge length in pixels of rendered QR images.
const qrImageSize = 256

// RenderQR renders a pairing payload as a PNG QR code and returns it as a
// data URL suitable for direct embedding in an <img> tag.
func RenderQR(payload string) (string, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("rendering QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
