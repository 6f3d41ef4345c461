package notify

import (
	qrcode "github.com/skip2/go-qrcode"
)

// RenderShareQR 把下载链接编码成 PNG 二维码。
func RenderShareQR(downloadURL string) ([]byte, error) {
	return qrcode.Encode(downloadURL, qrcode.Medium, 256)
}
