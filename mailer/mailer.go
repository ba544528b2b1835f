package mailer

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Mailer 是對外寄信的介面
type Mailer interface {
	Send(to []string, subject, text string) error
}

//go:generate mockgen -destination=mailermock/mailer_mock.go -package=mailermock venturelink/backend/mailer Mailer

// dialTimeout 是對 SMTP 伺服器的連線與讀寫時限，
// 避免寄信端過慢時卡住整個掃描迴圈
const dialTimeout = 10 * time.Second

// SMTPMailer 透過 SMTP 寄信
type SMTPMailer struct {
	host     string
	port     string
	from     string
	password string
}

// NewSMTPMailer 建立 SMTP 寄信器
func NewSMTPMailer(host, port, from, password string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, from: from, password: password}
}

// Send 寄出一封純文字信件給所有收件者
func (m *SMTPMailer) Send(to []string, subject, text string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	addr := net.JoinHostPort(m.host, m.port)
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial smtp server: %w", err)
	}
	// 為整個 SMTP 對話設定時限
	if err := conn.SetDeadline(time.Now().Add(dialTimeout)); err != nil {
		conn.Close()
		return err
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create smtp client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if m.password != "" {
		auth := smtp.PlainAuth("", m.from, m.password, m.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.from, strings.Join(to, ", "), subject, text)
	if _, err := writer.Write([]byte(body)); err != nil {
		writer.Close()
		return fmt.Errorf("write mail body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close mail body: %w", err)
	}

	return client.Quit()
}
