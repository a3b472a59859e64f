package notify

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iadeleke/domisafe/config"
)

func testConf() config.EmailConf {
	return config.EmailConf{
		Server:   "smtp.example.com:587",
		User:     "alerts@example.com",
		Password: "secret",
		To:       "owner@example.com",
		Cooldown: config.Duration{Duration: 300 * time.Second},
	}
}

func testMailer(conf config.EmailConf) (*Mailer, *[][]byte) {
	mailer := NewMailer(conf)
	sent := &[][]byte{}
	mailer.send = func(to []string, msg []byte) error {
		*sent = append(*sent, msg)
		return nil
	}
	return mailer, sent
}

func TestAlertCooldown(t *testing.T) {
	defer func() { Clock = time.Now }()
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	Clock = func() time.Time { return now }

	mailer, sent := testMailer(testConf())

	assert.True(t, mailer.Alert("motion", "Motion detected", "body", ""))
	assert.False(t, mailer.Alert("motion", "Motion detected", "body", ""),
		"second alert inside the cooldown must be dropped")
	assert.Len(t, *sent, 1)

	now = now.Add(301 * time.Second)
	assert.True(t, mailer.Alert("motion", "Motion detected", "body", ""))
	assert.Len(t, *sent, 2)
}

func TestAlertTypesIndependent(t *testing.T) {
	defer func() { Clock = time.Now }()
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	Clock = func() time.Time { return now }

	mailer, sent := testMailer(testConf())

	assert.True(t, mailer.Alert("motion", "Motion detected", "body", ""))
	assert.True(t, mailer.Alert("smoke", "Smoke detected", "body", ""),
		"smoke cools down independently of motion")
	assert.Len(t, *sent, 2)
}

func TestAlertDisabled(t *testing.T) {
	mailer, sent := testMailer(config.EmailConf{})
	assert.False(t, mailer.Enabled())
	assert.False(t, mailer.Alert("motion", "Motion detected", "body", ""))
	assert.Len(t, *sent, 0)
}

func TestComposePlain(t *testing.T) {
	mailer, sent := testMailer(testConf())
	assert.True(t, mailer.Alert("motion", "Motion detected", "someone at the door", ""))
	assert.Len(t, *sent, 1)
	msg := string((*sent)[0])
	assert.Contains(t, msg, "Subject: Motion detected")
	assert.Contains(t, msg, "To: owner@example.com")
	assert.Contains(t, msg, "someone at the door")
	assert.NotContains(t, msg, "multipart")
}

func TestComposeAttachment(t *testing.T) {
	dir := t.TempDir()
	image := path.Join(dir, "motion_1.jpg")
	assert.NoError(t, os.WriteFile(image, []byte("jpegdata"), 0644))

	mailer, sent := testMailer(testConf())
	assert.True(t, mailer.Alert("motion", "Motion detected", "body", image))
	assert.Len(t, *sent, 1)
	msg := string((*sent)[0])
	assert.Contains(t, msg, "multipart/mixed")
	assert.Contains(t, msg, `filename="motion_1.jpg"`)
}

func TestComposeMissingAttachment(t *testing.T) {
	mailer, sent := testMailer(testConf())
	assert.True(t, mailer.Alert("motion", "Motion detected", "body", "/nonexistent.jpg"))
	assert.Len(t, *sent, 1, "alert still goes out without the image")
	assert.NotContains(t, string((*sent)[0]), "multipart")
}
