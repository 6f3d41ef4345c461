package notify

import (
	"bytes"
	"testing"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestRenderShareQR_输出PNG(t *testing.T) {
	data, err := RenderShareQR("https://example.com/f/abc12345")
	if err != nil {
		t.Fatalf("生成二维码失败: %v", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Fatalf("输出不是 PNG")
	}
}
