// Package notify sends email alerts for security events, rate limited per
// alert type so a stuck sensor cannot flood an inbox.
package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log"
	"mime/multipart"
	"net"
	"net/smtp"
	"os"
	"path"
	"sync"
	"time"

	"github.com/iadeleke/domisafe/config"
)

// Clock is replaceable for tests.
var Clock = func() time.Time {
	return time.Now()
}

// Mailer sends alert emails over SMTP. Alerts of the same type within the
// cooldown window are dropped silently; different types cool down
// independently.
type Mailer struct {
	conf     config.EmailConf
	send     func(to []string, msg []byte) error
	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewMailer(conf config.EmailConf) *Mailer {
	self := &Mailer{
		conf:     conf,
		lastSent: map[string]time.Time{},
	}
	self.send = self.sendMail
	return self
}

// Enabled reports whether the mailer has enough configuration to send.
// A blank server or recipient turns alerting into a no-op rather than an
// error on every event.
func (self *Mailer) Enabled() bool {
	return self.conf.Server != "" && self.conf.To != ""
}

// Alert sends one email for alertType unless one was already sent within
// the cooldown window. Returns true when an email was attempted.
func (self *Mailer) Alert(alertType, subject, body, attachment string) bool {
	if !self.Enabled() {
		return false
	}
	now := Clock()

	self.mu.Lock()
	if last, ok := self.lastSent[alertType]; ok {
		if now.Sub(last) < self.conf.Cooldown.Duration {
			self.mu.Unlock()
			return false
		}
	}
	self.lastSent[alertType] = now
	self.mu.Unlock()

	msg, err := self.compose(subject, body, attachment)
	if err != nil {
		log.Println("Error composing email:", err)
		return true
	}
	if err := self.send([]string{self.conf.To}, msg); err != nil {
		log.Println("Error sending email:", err)
	} else {
		log.Printf("Sent %s alert email to %s", alertType, self.conf.To)
	}
	return true
}

func (self *Mailer) sendMail(to []string, msg []byte) error {
	var auth smtp.Auth
	if self.conf.User != "" {
		host, _, err := net.SplitHostPort(self.conf.Server)
		if err != nil {
			host = self.conf.Server
		}
		auth = smtp.PlainAuth("", self.conf.User, self.conf.Password, host)
	}
	from := self.conf.From
	if from == "" {
		from = self.conf.User
	}
	return smtp.SendMail(self.conf.Server, auth, from, to, msg)
}

// compose builds the RFC 822 message, multipart when an image attachment is
// given and readable.
func (self *Mailer) compose(subject, body, attachment string) ([]byte, error) {
	from := self.conf.From
	if from == "" {
		from = self.conf.User
	}

	var image []byte
	if attachment != "" {
		data, err := os.ReadFile(attachment)
		if err != nil {
			// missing capture shouldn't hold the alert back
			log.Println("Attachment unreadable, sending without:", err)
		} else {
			image = data
		}
	}

	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "From: %s\r\n", from)
	fmt.Fprintf(buf, "To: %s\r\n", self.conf.To)
	fmt.Fprintf(buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(buf, "MIME-Version: 1.0\r\n")

	if image == nil {
		fmt.Fprintf(buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(body)
		buf.WriteString("\r\n")
		return buf.Bytes(), nil
	}

	writer := multipart.NewWriter(buf)
	fmt.Fprintf(buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	text, err := writer.CreatePart(textHeader())
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(text, "%s\r\n", body)

	part, err := writer.CreatePart(imageHeader(path.Base(attachment)))
	if err != nil {
		return nil, err
	}
	encoder := base64.NewEncoder(base64.StdEncoding, part)
	encoder.Write(image)
	encoder.Close()

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func textHeader() map[string][]string {
	return map[string][]string{
		"Content-Type": {"text/plain; charset=utf-8"},
	}
}

func imageHeader(filename string) map[string][]string {
	return map[string][]string{
		"Content-Type":              {"image/jpeg"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filename)},
	}
}
