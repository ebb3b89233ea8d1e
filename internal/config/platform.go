package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultRadioName   = "HomePod Radio"
	defaultRadioModel  = "HomePod Radio"
	defaultRadioTrack  = "HomePod Radio"
	legacyRadioModel   = "Radio BBC"
	legacyRadioTrack   = "Radio BBC"
	serialNumberPrefix = "HPD"
)

// Radio is one internet radio station bound to the target device.
type Radio struct {
	Name        string
	Model       string
	URL         string
	TrackName   string
	Volume      int
	AutoResume  bool
	MetadataURL string
	ArtworkURL  string
	ValidateURL bool
}

// FileSwitch plays a media file from the media path.
type FileSwitch struct {
	Name       string
	FileName   string
	Volume     int
	ArtworkURL string
}

// AudioSwitch plays a media file and then broadcasts its volume to the
// other streamers of the same target.
type AudioSwitch FileSwitch

// Platform is the validated device and streamer configuration.
type Platform struct {
	TargetID      string
	SerialNumber  string
	VerboseMode   bool
	VolumeControl bool
	MediaPath     string
	Radios        []Radio
	Files         []FileSwitch
	Audios        []AudioSwitch
}

// RadioNames returns the configured radio names in order.
func (p *Platform) RadioNames() []string {
	names := make([]string, len(p.Radios))
	for i, r := range p.Radios {
		names[i] = r.Name
	}
	return names
}

type rawRadio struct {
	Name             string `json:"name" toml:"name" yaml:"name"`
	Model            string `json:"model" toml:"model" yaml:"model"`
	RadioURL         string `json:"radioUrl" toml:"radioUrl" yaml:"radioUrl"`
	TrackName        string `json:"trackName" toml:"trackName" yaml:"trackName"`
	Volume           int    `json:"volume" toml:"volume" yaml:"volume"`
	AutoResume       bool   `json:"autoResume" toml:"autoResume" yaml:"autoResume"`
	MetadataURL      string `json:"metadataUrl" toml:"metadataUrl" yaml:"metadataUrl"`
	ArtworkURL       string `json:"artworkUrl" toml:"artworkUrl" yaml:"artworkUrl"`
	ValidateRadioURL bool   `json:"validateRadioUrl" toml:"validateRadioUrl" yaml:"validateRadioUrl"`
}

type rawSwitch struct {
	Name       string `json:"name" toml:"name" yaml:"name"`
	FileName   string `json:"fileName" toml:"fileName" yaml:"fileName"`
	Volume     int    `json:"volume" toml:"volume" yaml:"volume"`
	ArtworkURL string `json:"artworkUrl" toml:"artworkUrl" yaml:"artworkUrl"`
}

type rawPlatform struct {
	rawRadio `yaml:",inline"`

	HomepodID     string      `json:"homepodId" toml:"homepodId" yaml:"homepodId"`
	SerialNumber  string      `json:"serialNumber" toml:"serialNumber" yaml:"serialNumber"`
	VerboseMode   bool        `json:"verboseMode" toml:"verboseMode" yaml:"verboseMode"`
	VolumeControl bool        `json:"volumeControl" toml:"volumeControl" yaml:"volumeControl"`
	MediaPath     string      `json:"mediaPath" toml:"mediaPath" yaml:"mediaPath"`
	Radios        []rawRadio  `json:"radios" toml:"radios" yaml:"radios"`
	Files         []rawSwitch `json:"files" toml:"files" yaml:"files"`
	Audios        []rawSwitch `json:"audios" toml:"audios" yaml:"audios"`
}

// LoadPlatform reads the platform file at path. The format follows the
// extension: .toml, .yaml/.yml, otherwise JSON.
func LoadPlatform(path string) (*Platform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("failed to read platform config", err)
	}

	var raw rawPlatform
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, configError(fmt.Sprintf("failed to parse %s", filepath.Base(path)), err)
	}

	return raw.platform()
}

// ParsePlatformJSON builds a Platform from a JSON document.
func ParsePlatformJSON(data []byte) (*Platform, error) {
	var raw rawPlatform
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, configError("failed to parse platform JSON", err)
	}
	return raw.platform()
}

func (raw *rawPlatform) platform() (*Platform, error) {
	if raw.HomepodID == "" {
		return nil, configError(`Missing "homepodId" setting!`, nil)
	}

	p := &Platform{
		TargetID:      raw.HomepodID,
		SerialNumber:  raw.SerialNumber,
		VerboseMode:   raw.VerboseMode,
		VolumeControl: raw.VolumeControl,
		MediaPath:     raw.MediaPath,
	}
	if p.SerialNumber == "" {
		p.SerialNumber = serialNumberPrefix + raw.HomepodID
	}
	if p.MediaPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			p.MediaPath = home
		}
	}

	if raw.Radios == nil {
		p.Radios = []Radio{raw.legacyRadio()}
	} else {
		for i, r := range raw.Radios {
			if r.Name == "" {
				return nil, configError(fmt.Sprintf("radio #%d has no name", i+1), nil)
			}
			p.Radios = append(p.Radios, Radio{
				Name:        r.Name,
				Model:       orDefault(r.Model, defaultRadioModel),
				URL:         r.RadioURL,
				TrackName:   orDefault(r.TrackName, defaultRadioTrack),
				Volume:      boundedVolume(r.Volume),
				AutoResume:  r.AutoResume,
				MetadataURL: r.MetadataURL,
				ArtworkURL:  r.ArtworkURL,
				ValidateURL: r.ValidateRadioURL,
			})
		}
	}

	for _, f := range raw.Files {
		p.Files = append(p.Files, f.normalize())
	}
	for _, a := range raw.Audios {
		p.Audios = append(p.Audios, AudioSwitch(a.normalize()))
	}

	if err := p.checkNames(); err != nil {
		return nil, err
	}
	return p, nil
}

// legacyRadio maps the single-radio layout with top-level radio keys.
func (raw *rawPlatform) legacyRadio() Radio {
	return Radio{
		Name:        orDefault(raw.Name, defaultRadioName),
		Model:       orDefault(raw.Model, legacyRadioModel),
		URL:         raw.RadioURL,
		TrackName:   orDefault(raw.TrackName, legacyRadioTrack),
		Volume:      boundedVolume(raw.Volume),
		MetadataURL: raw.MetadataURL,
		ArtworkURL:  raw.ArtworkURL,
		ValidateURL: raw.ValidateRadioURL,
	}
}

func (s rawSwitch) normalize() FileSwitch {
	return FileSwitch{
		Name:       orDefault(s.Name, s.FileName),
		FileName:   s.FileName,
		Volume:     boundedVolume(s.Volume),
		ArtworkURL: s.ArtworkURL,
	}
}

// checkNames rejects duplicate streamer names, which would make API
// lookups ambiguous.
func (p *Platform) checkNames() error {
	seen := make(map[string]bool)
	var errs []error
	add := func(kind, name string) {
		if seen[name] {
			errs = append(errs, fmt.Errorf("duplicate %s name %q", kind, name))
		}
		seen[name] = true
	}
	for _, r := range p.Radios {
		add("radio", r.Name)
	}
	for _, f := range p.Files {
		add("file", f.Name)
	}
	for _, a := range p.Audios {
		add("audio", a.Name)
	}
	if len(errs) > 0 {
		return configError("invalid streamer names", errors.Join(errs...))
	}
	return nil
}

// boundedVolume keeps v only inside (0, 100); anything else means "do not
// touch the device volume".
func boundedVolume(v int) int {
	if v > 0 && v < 100 {
		return v
	}
	return 0
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
