package storage

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSanitizeFilename_空白替换为下划线(t *testing.T) {
	if got := SanitizeFilename("  report v1.pdf "); got != "report_v1.pdf" {
		t.Fatalf("清洗结果不正确: %q", got)
	}
	if got := SanitizeFilename("a\tb\nc.txt"); got != "a_b_c.txt" {
		t.Fatalf("清洗结果不正确: %q", got)
	}
}

func TestBuildObjectKey_UTF8Safe(t *testing.T) {
	now := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	key := BuildObjectKey("1105-隐身人机.mp4", now)
	if !utf8.ValidString(key) {
		t.Fatalf("生成的对象路径不是有效 UTF-8: %q", key)
	}
	if !strings.HasPrefix(key, "2026-03/") {
		t.Fatalf("对象路径未按年月分目录: %q", key)
	}
	if !strings.HasSuffix(key, ".mp4") {
		t.Fatalf("对象路径未保留后缀: %q", key)
	}
}

func TestBuildObjectKey_TruncateRunes(t *testing.T) {
	now := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	long := strings.Repeat("超", 60) + ".mp4"
	key := BuildObjectKey(long, now)
	if !utf8.ValidString(key) {
		t.Fatalf("生成的对象路径不是有效 UTF-8: %q", key)
	}
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		t.Fatalf("对象路径格式错误: %q", key)
	}
	name := strings.TrimSuffix(parts[1], ".mp4")
	idx := strings.LastIndex(name, "-")
	if idx < 0 {
		t.Fatalf("对象路径缺少唯一后缀: %q", key)
	}
	base := name[:idx]
	if utf8.RuneCountInString(base) != 40 {
		t.Fatalf("文件名截断长度不正确: %d", utf8.RuneCountInString(base))
	}
}

func TestBuildObjectKey_同名文件互不覆盖(t *testing.T) {
	now := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	a := BuildObjectKey("a.txt", now)
	b := BuildObjectKey("a.txt", now)
	if a == b {
		t.Fatalf("同名文件的对象路径不应相同: %q", a)
	}
}

func TestNormalizeObjectKey_拒绝目录穿越(t *testing.T) {
	if _, err := NormalizeObjectKey("../etc/passwd"); err == nil {
		t.Fatalf("目录穿越应被拒绝")
	}
	got, err := NormalizeObjectKey("/2026-03/a.txt")
	if err != nil {
		t.Fatalf("合法 key 解析失败: %v", err)
	}
	if got != "2026-03/a.txt" {
		t.Fatalf("前导斜杠应被去掉: %q", got)
	}
}

func TestBuildContentDisposition_非ASCII文件名(t *testing.T) {
	got := BuildContentDisposition("报告.pdf")
	if !strings.Contains(got, "filename*=UTF-8''") {
		t.Fatalf("缺少 RFC 5987 编码: %q", got)
	}
	if !strings.Contains(got, `filename="`) {
		t.Fatalf("缺少 ASCII 兜底文件名: %q", got)
	}
}

func TestNormalizeDriver(t *testing.T) {
	if got, err := NormalizeDriver("S3"); err != nil || got != PlatformS3 {
		t.Fatalf("期望 s3，实际=%q err=%v", got, err)
	}
	if got, err := NormalizeDriver(""); err != nil || got != PlatformLocal {
		t.Fatalf("空驱动应回落 local，实际=%q err=%v", got, err)
	}
	if _, err := NormalizeDriver("ftp"); err == nil {
		t.Fatalf("未知驱动应报错")
	}
}
