package notify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"droplink/internal/config"
	"droplink/internal/db/model"
)

type fakeSender struct {
	to, subject, body string
	err               error
}

func (f *fakeSender) Send(to, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestSendShareEmail_正文包含链接与文件名(t *testing.T) {
	sender := &fakeSender{}
	mailer := &Mailer{Sender: sender, Logger: discardLogger()}

	rec := &model.ShareRecord{ID: 7, DisplayName: "报告.pdf", ShortCode: "abc12345"}
	if err := mailer.SendShareEmail(rec, "https://signed.example/k", "to@example.com"); err != nil {
		t.Fatalf("发送失败: %v", err)
	}
	if sender.to != "to@example.com" {
		t.Fatalf("收件人不正确: %q", sender.to)
	}
	if !strings.Contains(sender.subject, "报告.pdf") {
		t.Fatalf("主题未包含文件名: %q", sender.subject)
	}
	if !strings.Contains(sender.body, "https://signed.example/k") {
		t.Fatalf("正文未包含下载链接: %q", sender.body)
	}
}

func TestSendShareEmail_失败时包装统一错误(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("smtp 超时")}
	mailer := &Mailer{Sender: sender, Logger: discardLogger()}

	err := mailer.SendShareEmail(&model.ShareRecord{ID: 1, DisplayName: "a.txt"}, "url", "to@example.com")
	if !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("期望 ErrNotificationFailed，实际=%v", err)
	}
}

func TestNewMailer_SMTP未配置时退化(t *testing.T) {
	mailer := NewMailer(config.AppConfig{}, discardLogger())
	err := mailer.SendShareEmail(&model.ShareRecord{ID: 1, DisplayName: "a.txt"}, "url", "to@example.com")
	if !errors.Is(err, ErrNotificationFailed) {
		t.Fatalf("未配置 SMTP 时发送应失败，实际=%v", err)
	}
}
