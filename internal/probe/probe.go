// Package probe reads video metadata with a single ffprobe JSON call.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/idelchi/fileinsights/internal/record"
)

// ErrNoVideoStream is returned when the container has no usable video stream.
var ErrNoVideoStream = errors.New("no video stream")

// DefaultBinary is the ffprobe executable looked up on PATH.
const DefaultBinary = "ffprobe"

// FFProbe probes files by running the ffprobe binary.
type FFProbe struct {
	// Binary is the ffprobe executable. Empty means DefaultBinary.
	Binary string
}

// Available reports whether the ffprobe binary can be found.
func (p FFProbe) Available() error {
	if _, err := exec.LookPath(p.binary()); err != nil {
		return fmt.Errorf("locating %s: %w", p.binary(), err)
	}

	return nil
}

func (p FFProbe) binary() string {
	if p.Binary == "" {
		return DefaultBinary
	}

	return p.Binary
}

// Probe runs ffprobe against path and returns the parsed metadata.
func (p FFProbe) Probe(ctx context.Context, path string) (record.VideoMetadata, error) {
	cmd := exec.CommandContext(ctx, p.binary(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return record.VideoMetadata{}, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	return ParseJSON(out)
}

// ParseJSON converts raw ffprobe JSON output into VideoMetadata.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (record.VideoMetadata, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return record.VideoMetadata{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	return build(&raw)
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecName    string         `json:"codec_name"`
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	RFrameRate   string         `json:"r_frame_rate"`
	Duration     string         `json:"duration"`
	Disposition  map[string]int `json:"disposition"`
}

func build(raw *ffprobeOutput) (record.VideoMetadata, error) {
	var (
		video *ffprobeStream
		audio *ffprobeStream
	)

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			// Cover art is stored as a single-frame video stream.
			if s.Disposition["attached_pic"] == 1 || video != nil {
				continue
			}
			video = s
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}

	if video == nil {
		return record.VideoMetadata{}, ErrNoVideoStream
	}

	meta := record.VideoMetadata{
		DurationSeconds: parseFloat(raw.Format.Duration),
		Width:           max(video.Width, 0),
		Height:          max(video.Height, 0),
		FPS:             parseRate(video.AvgFrameRate),
		VideoCodec:      video.CodecName,
		AudioCodec:      record.Unknown,
	}

	if meta.DurationSeconds == 0 {
		meta.DurationSeconds = parseFloat(video.Duration)
	}

	if meta.FPS == 0 {
		meta.FPS = parseRate(video.RFrameRate)
	}

	if meta.VideoCodec == "" {
		meta.VideoCodec = record.Unknown
	}

	if audio != nil && audio.CodecName != "" {
		meta.AudioCodec = audio.CodecName
	}

	return meta, nil
}

// parseRate parses ffprobe rationals such as "30000/1001". Zero
// denominators and garbage yield 0.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return parseFloat(num)
	}

	d := parseFloat(den)
	if d == 0 {
		return 0
	}

	return finite(parseFloat(num) / d)
}

// parseFloat returns 0 for anything that is not a finite, non-negative number.
// ParseFloat accepts "nan" and "inf".
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}

	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}

	return f
}
