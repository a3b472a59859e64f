package sensors

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/exec"
	"path"
	"time"
)

// Camera captures still images by invoking the capture command (rpicam-still
// on a Pi). When the command is missing or fails it writes a fallback note
// instead, so the pipeline still records that a detection happened.
type Camera struct {
	dir     string
	command string
}

func NewCamera(dir, command string) (*Camera, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Camera{dir: dir, command: command}, nil
}

func (self *Camera) Capture() (string, error) {
	ts := Clock().Format("20060102_150405")
	jpgPath := path.Join(self.dir, fmt.Sprintf("motion_%s.jpg", ts))

	cmd := exec.Command(self.command, "-o", jpgPath, "-t", "1", "--nopreview")
	if err := cmd.Run(); err == nil {
		log.Println("Image captured:", jpgPath)
		return jpgPath, nil
	} else {
		log.Printf("Camera capture failed (%s), creating fallback note", err)
	}

	txtPath := path.Join(self.dir, fmt.Sprintf("motion_%s.txt", ts))
	note := fmt.Sprintf("Motion detected at %s", Clock().Format(time.RFC3339))
	if err := ioutil.WriteFile(txtPath, []byte(note), 0644); err != nil {
		return "", err
	}
	return txtPath, nil
}
