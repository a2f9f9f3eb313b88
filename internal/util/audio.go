package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// AudioInfo holds probed metadata for an encoded audio file.
type AudioInfo struct {
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Size       int64   `json:"size"`
}

// EncodePCMToWAV wraps raw 16-bit little-endian mono PCM into a WAV file.
func EncodePCMToWAV(pcm []byte, sampleRate int, outPath string) error {
	if len(pcm) == 0 {
		return fmt.Errorf("empty pcm buffer")
	}

	err := ffmpeg.Input("pipe:",
		ffmpeg.KwArgs{"f": "s16le", "ar": strconv.Itoa(sampleRate), "ac": "1"}).
		Output(outPath, ffmpeg.KwArgs{"c:a": "pcm_s16le"}).
		OverWriteOutput().
		WithInput(bytes.NewReader(pcm)).
		Run()
	if err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

// GetAudioInfo probes an encoded audio file for duration and stream layout.
func GetAudioInfo(path string) (*AudioInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	jsonOutput, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("probe audio: %w", err)
	}

	var result struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	info := &AudioInfo{Size: fileInfo.Size()}
	for _, stream := range result.Streams {
		if stream.CodecType == "audio" {
			info.SampleRate, _ = strconv.Atoi(stream.SampleRate)
			info.Channels = stream.Channels
			break
		}
	}
	info.Duration, _ = strconv.ParseFloat(result.Format.Duration, 64)

	return info, nil
}
