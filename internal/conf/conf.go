// Package conf contains the struct that holds the configuration of the software.
package conf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/bluenviron/gortsplib/v4/pkg/base"

	"github.com/ovframework/ovf/internal/conf/env"
	"github.com/ovframework/ovf/internal/conf/yamlwrapper"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
)

func firstThatExists(paths []string) string {
	for _, pa := range paths {
		_, err := os.Stat(pa)
		if err == nil {
			return pa
		}
	}
	return ""
}

// Conf is a configuration.
type Conf struct {
	// General
	LogLevel           LogLevel        `json:"logLevel"`
	LogDestinations    LogDestinations `json:"logDestinations"`
	LogStructured      bool            `json:"logStructured"`
	LogFile            string          `json:"logFile"`
	ReadTimeout        StringDuration  `json:"readTimeout"`
	Metrics            bool            `json:"metrics"`
	MetricsAddress     string          `json:"metricsAddress"`
	PPROF              bool            `json:"pprof"`
	PPROFAddress       string          `json:"pprofAddress"`
	SourceRestartPause StringDuration  `json:"sourceRestartPause"`

	// Source
	Source     string     `json:"source"`
	RTSPUser   string     `json:"rtspUser"`
	RTSPPass   string     `json:"rtspPass"`
	MediaKinds MediaKinds `json:"mediaKinds"`
	Codecs     Codecs     `json:"codecs"`

	// MJPEG
	MJPEG          bool   `json:"mjpeg"`
	MJPEGAddress   string `json:"mjpegAddress"`
	MJPEGRoute     string `json:"mjpegRoute"`
	MJPEGQueueSize int    `json:"mjpegQueueSize"`

	// Recording
	RecordVideo           bool           `json:"recordVideo"`
	RecordVideoPath       string         `json:"recordVideoPath"`
	RecordAudio           bool           `json:"recordAudio"`
	RecordAudioPath       string         `json:"recordAudioPath"`
	RecordSegmentDuration StringDuration `json:"recordSegmentDuration"`
	RecordSegmentMaxSize  StringSize     `json:"recordSegmentMaxSize"`
	RunOnSegmentComplete  string         `json:"runOnSegmentComplete"`
}

func (conf *Conf) setDefaults() {
	// General
	conf.LogLevel = LogLevel(logger.Info)
	conf.LogDestinations = LogDestinations{logger.DestinationStdout}
	conf.LogFile = "ovf.log"
	conf.ReadTimeout = 10 * StringDuration(time.Second)
	conf.MetricsAddress = ":9998"
	conf.PPROFAddress = ":9999"
	conf.SourceRestartPause = 5 * StringDuration(time.Second)

	// Source
	conf.MediaKinds = MediaKinds{media.KindVideo, media.KindAudio}
	conf.Codecs = Codecs{media.CodecMJPEG, media.CodecAC3}

	// MJPEG
	conf.MJPEG = true
	conf.MJPEGAddress = ":8080"
	conf.MJPEGRoute = "/stream"
	conf.MJPEGQueueSize = 10

	// Recording
	conf.RecordVideoPath = "./recordings/video_%Y-%m-%d_%H-%M-%S-%f.mjpeg"
	conf.RecordAudioPath = "./recordings/audio_%Y-%m-%d_%H-%M-%S-%f.ac3"
	conf.RecordSegmentDuration = StringDuration(1 * time.Hour)
	conf.RecordSegmentMaxSize = 100 * 1024 * 1024
}

// Load loads a Conf.
func Load(fpath string, defaultConfPaths []string) (*Conf, string, error) {
	conf := &Conf{}

	fpath, err := conf.loadFromFile(fpath, defaultConfPaths)
	if err != nil {
		return nil, "", err
	}

	err = env.Load("OVF", conf)
	if err != nil {
		return nil, "", err
	}

	err = conf.Validate()
	if err != nil {
		return nil, "", err
	}

	return conf, fpath, nil
}

func (conf *Conf) loadFromFile(fpath string, defaultConfPaths []string) (string, error) {
	if fpath == "" {
		fpath = firstThatExists(defaultConfPaths)

		// when the configuration file is not explicitly set,
		// it is optional.
		if fpath == "" {
			conf.setDefaults()
			return "", nil
		}
	}

	byts, err := os.ReadFile(fpath)
	if err != nil {
		return "", err
	}

	err = yamlwrapper.Unmarshal(byts, conf)
	if err != nil {
		return "", err
	}

	return fpath, nil
}

// Clone clones the configuration.
func (conf Conf) Clone() *Conf {
	enc, err := json.Marshal(conf)
	if err != nil {
		panic(err)
	}

	var dest Conf
	err = json.Unmarshal(enc, &dest)
	if err != nil {
		panic(err)
	}

	return &dest
}

// Validate checks the configuration for errors.
func (conf *Conf) Validate() error {
	// General

	if conf.ReadTimeout <= 0 {
		return fmt.Errorf("'readTimeout' must be greater than zero")
	}
	if conf.SourceRestartPause < 0 {
		return fmt.Errorf("'sourceRestartPause' must not be negative")
	}
	if slices.Contains(conf.LogDestinations, logger.DestinationFile) && conf.LogFile == "" {
		return fmt.Errorf("'logFile' is empty")
	}

	// Source

	if conf.Source == "" {
		return fmt.Errorf("'source' is empty")
	}
	u, err := base.ParseURL(conf.Source)
	if err != nil {
		return fmt.Errorf("'%s' is not a valid URL", conf.Source)
	}
	if u.Scheme != "rtsp" {
		return fmt.Errorf("'source' must be a RTSP URL")
	}
	if (conf.RTSPUser != "") != (conf.RTSPPass != "") {
		return fmt.Errorf("'rtspUser' and 'rtspPass' must be set together")
	}
	if len(conf.MediaKinds) == 0 {
		return fmt.Errorf("'mediaKinds' is empty")
	}
	for _, c := range conf.Codecs {
		if !slices.Contains(conf.MediaKinds, c.Kind()) {
			return fmt.Errorf("codec '%v' is not of an enabled media kind", c)
		}
	}

	// MJPEG

	if conf.MJPEG {
		if !strings.HasPrefix(conf.MJPEGRoute, "/") || (len(conf.MJPEGRoute) > 1 && strings.HasSuffix(conf.MJPEGRoute, "/")) {
			return fmt.Errorf("'mjpegRoute' must begin with a slash and must not end with one")
		}
		if conf.MJPEGQueueSize <= 0 {
			return fmt.Errorf("'mjpegQueueSize' must be greater than zero")
		}
	}

	// Recording

	if conf.RecordVideo && conf.RecordVideoPath == "" {
		return fmt.Errorf("'recordVideoPath' is empty")
	}
	if conf.RecordAudio && conf.RecordAudioPath == "" {
		return fmt.Errorf("'recordAudioPath' is empty")
	}
	if conf.RecordSegmentDuration <= 0 {
		return fmt.Errorf("'recordSegmentDuration' must be greater than zero")
	}
	if conf.RecordSegmentMaxSize == 0 {
		return fmt.Errorf("'recordSegmentMaxSize' must be greater than zero")
	}

	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (conf *Conf) UnmarshalJSON(b []byte) error {
	conf.setDefaults()

	type alias Conf
	d := json.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	return d.Decode((*alias)(conf))
}
