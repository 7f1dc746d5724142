package utils

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"path/filepath"
	"strings"
)

// SMTPAccount carries the connection settings for one send. Credentials come
// from the smtp_credentials table per (module, action); the config fallback
// is used when no row matches.
type SMTPAccount struct {
	Host      string
	Port      string
	Username  string
	Password  string
	FromName  string
	FromEmail string
}

// Attachment is an already-fetched file to include in the message.
type Attachment struct {
	Filename string
	Content  []byte
}

// SendMail connects, upgrades to TLS, authenticates and sends one HTML
// message. Attachments are optional; when present the message is built as
// multipart/mixed.
func SendMail(acct SMTPAccount, to, cc []string, subject, htmlBody string, attachments []Attachment) error {
	if acct.Host == "" || acct.Username == "" || acct.Password == "" {
		fmt.Println("⚠️ SMTP not configured. Email not sent.")
		return nil
	}
	if acct.FromEmail == "" {
		acct.FromEmail = acct.Username
	}

	addr := fmt.Sprintf("%s:%s", acct.Host, acct.Port)

	// Dial first, then StartTLS. Plain tls.Dial breaks against servers that
	// expect the upgrade handshake.
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         acct.Host,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	auth := smtp.PlainAuth("", acct.Username, acct.Password, acct.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := client.Mail(acct.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range append(append([]string{}, to...), cc...) {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}

	msg := buildMessage(acct, to, cc, subject, htmlBody, attachments)
	if _, err = w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	if err := client.Quit(); err != nil {
		fmt.Printf("⚠️ QUIT command error (non-critical): %v\n", err)
	}
	return nil
}

func buildMessage(acct SMTPAccount, to, cc []string, subject, htmlBody string, attachments []Attachment) []byte {
	from := acct.FromEmail
	if acct.FromName != "" {
		from = fmt.Sprintf("%s <%s>", acct.FromName, acct.FromEmail)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	if len(cc) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(cc, ", ")))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(htmlBody)
		return []byte(b.String())
	}

	const boundary = "bgv-mail-boundary-7c19"
	b.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary))

	b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	for _, att := range attachments {
		ctype := mime.TypeByExtension(filepath.Ext(att.Filename))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		b.WriteString(fmt.Sprintf("Content-Type: %s\r\n", ctype))
		b.WriteString("Content-Transfer-Encoding: base64\r\n")
		b.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n\r\n", att.Filename))

		enc := base64.StdEncoding.EncodeToString(att.Content)
		// wrap at 76 chars per RFC 2045
		var wrapped bytes.Buffer
		for len(enc) > 76 {
			wrapped.WriteString(enc[:76] + "\r\n")
			enc = enc[76:]
		}
		wrapped.WriteString(enc + "\r\n")
		b.Write(wrapped.Bytes())
	}
	b.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return []byte(b.String())
}
