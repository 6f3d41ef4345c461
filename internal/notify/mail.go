package notify

import (
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"droplink/internal/config"
	"droplink/internal/db/model"
)

// 邮件投递失败统一以该错误上抛，不影响分享记录本身。
var ErrNotificationFailed = errors.New("通知发送失败")

// MailSender 是邮件投递协作方的最小契约，测试里用假实现替换。
type MailSender interface {
	Send(to, subject, body string) error
}

type SMTPSender struct {
	cfg config.AppConfig
}

func NewSMTPSender(cfg config.AppConfig) (*SMTPSender, error) {
	if cfg.SmtpHost == "" || cfg.SmtpFrom == "" {
		return nil, fmt.Errorf("缺少 SMTP 配置")
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.SmtpFrom)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.cfg.SmtpHost, s.cfg.SmtpPort, s.cfg.SmtpUsername, s.cfg.SmtpPassword)
	return d.DialAndSend(m)
}

type Mailer struct {
	Sender MailSender
	Logger *slog.Logger
}

// disabledSender 在 SMTP 未配置时占位，调用即失败。
type disabledSender struct{}

func (disabledSender) Send(_, _, _ string) error {
	return fmt.Errorf("SMTP 未配置")
}

// NewMailer 根据 APP 配置构造邮件服务，SMTP 缺失时退化为不可用状态。
func NewMailer(cfg config.AppConfig, logger *slog.Logger) *Mailer {
	sender, err := NewSMTPSender(cfg)
	if err != nil {
		logger.Warn("邮件通知不可用", "err", err)
		return &Mailer{Sender: disabledSender{}, Logger: logger}
	}
	return &Mailer{Sender: sender, Logger: logger}
}

// SendShareEmail 把签好的下载链接发给收件人。
func (m *Mailer) SendShareEmail(rec *model.ShareRecord, downloadURL, to string) error {
	subject := fmt.Sprintf("文件分享：%s", rec.DisplayName)
	body := formatShareMail(rec, downloadURL)
	if err := m.Sender.Send(to, subject, body); err != nil {
		m.Logger.Error("分享邮件发送失败", "err", err, "to", to, "id", rec.ID)
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	m.Logger.Info("分享邮件已发送", "to", to, "id", rec.ID)
	return nil
}

func formatShareMail(rec *model.ShareRecord, downloadURL string) string {
	body := fmt.Sprintf("有人给你分享了文件「%s」（%d 字节）。\n\n下载链接（24 小时内有效）：\n%s\n", rec.DisplayName, rec.SizeBytes, downloadURL)
	if rec.ExpiresAt != nil {
		body += fmt.Sprintf("\n分享到期时间：%s\n", rec.ExpiresAt.Format("2006-01-02 15:04"))
	}
	return body
}
