package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/edgescribe/edgescribe/internal/errors"
)

const framesPerBuffer = 1024

// SegmentHandler receives the path of each completed segment file.
// It is invoked synchronously from the capture goroutine, so handlers
// should hand work off quickly.
type SegmentHandler func(path string)

// Capturer records microphone audio and slices it into fixed-length
// WAV segments on disk.
type Capturer struct {
	dir        string
	sampleRate int
	segFrames  int
	deviceName string
	onSegment  SegmentHandler
	log        *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	index   int
}

// NewCapturer prepares a capturer that writes segments of the given
// length into dir. The handler fires once per completed segment.
func NewCapturer(dir string, sampleRate, segmentSeconds int, deviceName string, onSegment SegmentHandler, log *slog.Logger) *Capturer {
	if log == nil {
		log = slog.Default()
	}
	return &Capturer{
		dir:        dir,
		sampleRate: sampleRate,
		segFrames:  sampleRate * segmentSeconds,
		deviceName: deviceName,
		onSegment:  onSegment,
		log:        log,
	}
}

// Start opens the input stream and begins producing segments. It
// returns once the stream is live; capture continues on a background
// goroutine until Stop is called.
func (c *Capturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return apperrors.New(apperrors.AlreadyRunning, "capture already running")
	}

	if err := portaudio.Initialize(); err != nil {
		return apperrors.Wrap(err, apperrors.CaptureFailed, "initializing audio subsystem")
	}

	dev, err := c.inputDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	in := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenStream(params, in)
	if err != nil {
		portaudio.Terminate()
		return apperrors.Wrap(err, apperrors.CaptureFailed, "opening input stream")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return apperrors.Wrap(err, apperrors.CaptureFailed, "starting input stream")
	}

	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go c.loop(stream, in, c.stopCh, c.doneCh)

	c.log.Info("capture started",
		slog.String("device", dev.Name),
		slog.Int("sample_rate", c.sampleRate))
	return nil
}

// Stop halts capture, flushes any partial trailing segment through the
// handler, and releases the audio device. Safe to call when not running.
func (c *Capturer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()

	<-done
	c.log.Info("capture stopped")
}

func (c *Capturer) loop(stream *portaudio.Stream, in []int16, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer portaudio.Terminate()
	defer stream.Close()
	defer stream.Stop()

	pending := make([]int16, 0, c.segFrames)
	for {
		select {
		case <-stopCh:
			if len(pending) > 0 {
				c.flush(pending)
			}
			return
		default:
		}

		if err := stream.Read(); err != nil {
			// Overflows happen when a segment write stalls the loop;
			// the stream keeps running, so drop the buffer and go on.
			if err == portaudio.InputOverflowed {
				c.log.Warn("input overflowed, dropping buffer")
				continue
			}
			c.log.Error("stream read failed", slog.String("error", err.Error()))
			if len(pending) > 0 {
				c.flush(pending)
			}
			return
		}

		pending = append(pending, in...)
		if len(pending) >= c.segFrames {
			c.flush(pending[:c.segFrames])
			rest := pending[c.segFrames:]
			pending = make([]int16, 0, c.segFrames)
			pending = append(pending, rest...)
		}
	}
}

func (c *Capturer) flush(samples []int16) {
	c.index++
	path := filepath.Join(c.dir, fmt.Sprintf("segment_%04d.wav", c.index))
	if err := writeWAV(path, samples, c.sampleRate); err != nil {
		c.log.Error("segment write failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	c.log.Debug("segment written",
		slog.String("path", path),
		slog.Int("frames", len(samples)))
	if c.onSegment != nil {
		c.onSegment(path)
	}
}

func (c *Capturer) inputDevice() (*portaudio.DeviceInfo, error) {
	if c.deviceName == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CaptureFailed, "no default input device")
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CaptureFailed, "listing audio devices")
	}
	want := strings.ToLower(c.deviceName)
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 && strings.Contains(strings.ToLower(dev.Name), want) {
			return dev, nil
		}
	}
	return nil, apperrors.Newf(apperrors.CaptureFailed, "no input device matching %q", c.deviceName)
}

// Delete removes a segment file. Missing files are not an error, so
// retries after a partial cleanup are safe.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.Wrap(err, apperrors.Internal, "removing segment file")
	}
	return nil
}

// DeviceInfo describes an available audio input device.
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// Devices lists input-capable audio devices on this machine.
func Devices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CaptureFailed, "initializing audio subsystem")
	}
	defer portaudio.Terminate()

	def, _ := portaudio.DefaultInputDevice()
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CaptureFailed, "listing audio devices")
	}

	var out []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels == 0 {
			continue
		}
		out = append(out, DeviceInfo{
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         def != nil && dev.Name == def.Name,
		})
	}
	return out, nil
}
