package sensors

import (
	"log"
	"time"

	"github.com/iadeleke/domisafe/gpio"
)

// SecurityEvent is one security sample. Immutable once produced.
type SecurityEvent struct {
	Timestamp      time.Time
	MotionDetected bool
	SmokeDetected  bool
	ImagePath      string
}

func (self SecurityEvent) Map() map[string]interface{} {
	fields := map[string]interface{}{
		"timestamp":       self.Timestamp.Format(time.RFC3339),
		"motion_detected": self.MotionDetected,
		"smoke_detected":  self.SmokeDetected,
	}
	if self.ImagePath != "" {
		fields["image_path"] = self.ImagePath
	}
	return fields
}

// Capturer takes a snapshot and returns its path.
type Capturer interface {
	Capture() (string, error)
}

// Security samples the PIR motion sensor and optional smoke input, and
// captures an image when motion is seen.
type Security struct {
	pir     gpio.Input
	smoke   gpio.Input // nil when not wired
	capture Capturer   // nil when the camera is disabled
}

func NewSecurity(pir gpio.Input, smoke gpio.Input, capture Capturer) *Security {
	return &Security{pir: pir, smoke: smoke, capture: capture}
}

// Read produces one security event. A capture failure is logged, not fatal -
// the detection itself still stands.
func (self *Security) Read() (SecurityEvent, error) {
	motion, err := self.pir.Get()
	if err != nil {
		return SecurityEvent{}, err
	}

	smoke := false
	if self.smoke != nil {
		smoke, err = self.smoke.Get()
		if err != nil {
			return SecurityEvent{}, err
		}
	}

	imagePath := ""
	if motion && self.capture != nil {
		imagePath, err = self.capture.Capture()
		if err != nil {
			log.Println("Camera capture failed:", err)
			imagePath = ""
		}
	}

	return SecurityEvent{
		Timestamp:      Clock(),
		MotionDetected: motion,
		SmokeDetected:  smoke,
		ImagePath:      imagePath,
	}, nil
}
