package wav

// Minimal PCM plumbing for the analysis pipeline. The browser client streams
// base64-encoded 16-bit little-endian mono PCM; the offline tool reads
// canonical PCM WAV files. Anything fancier (compressed codecs, multi-channel
// mixdown) is out of scope and should be converted before it gets here.

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"
)

// WavInfo describes a decoded PCM WAV file.
type WavInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Data       []byte
}

// WavBytesToSamples converts 16-bit little-endian PCM bytes into normalized
// float64 samples in [-1, 1].
func WavBytesToSamples(data []byte) ([]float64, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("odd PCM16 byte count: %d", len(data))
	}
	samples := make([]float64, len(data)/2)
	for i := range samples {
		raw := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float64(raw) / 32768.0
	}
	return samples, nil
}

// SamplesToWavBytes converts normalized samples back into 16-bit
// little-endian PCM, clipping out-of-range values.
func SamplesToWavBytes(samples []float64) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(s*32767)))
	}
	return data
}

// DecodeBase64PCM decodes the base64 PCM16 payload streamed by the client.
func DecodeBase64PCM(payload string) ([]float64, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	return WavBytesToSamples(raw)
}

// EncodeBase64PCM encodes samples as the base64 PCM16 form used on the wire.
func EncodeBase64PCM(samples []float64) string {
	return base64.StdEncoding.EncodeToString(SamplesToWavBytes(samples))
}

// ReadWavInfo parses a canonical PCM WAV file. Only uncompressed 16-bit audio
// is supported.
func ReadWavInfo(path string) (*WavInfo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav file: %w", err)
	}
	if len(raw) < 44 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file: %s", path)
	}

	info := &WavInfo{}
	offset := 12
	for offset+8 <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(raw) {
			return nil, fmt.Errorf("truncated chunk %q in %s", chunkID, path)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("malformed fmt chunk in %s", path)
			}
			format := binary.LittleEndian.Uint16(raw[body:])
			if format != 1 {
				return nil, fmt.Errorf("unsupported wav format %d (want PCM)", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(raw[body+2:]))
			info.SampleRate = int(binary.LittleEndian.Uint32(raw[body+4:]))
			info.BitDepth = int(binary.LittleEndian.Uint16(raw[body+14:]))
		case "data":
			info.Data = raw[body : body+chunkSize]
		}

		// Chunks are word aligned.
		offset = body + chunkSize + chunkSize%2
	}

	if info.SampleRate == 0 || info.Data == nil {
		return nil, fmt.Errorf("missing fmt or data chunk in %s", path)
	}
	if info.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d (want 16)", info.BitDepth)
	}
	return info, nil
}

// MonoSamples decodes the data chunk into normalized mono samples, averaging
// channels when the file is multi-channel.
func (info *WavInfo) MonoSamples() ([]float64, error) {
	samples, err := WavBytesToSamples(info.Data)
	if err != nil {
		return nil, err
	}
	if info.Channels <= 1 {
		return samples, nil
	}

	mono := make([]float64, len(samples)/info.Channels)
	for i := range mono {
		var sum float64
		for c := 0; c < info.Channels; c++ {
			sum += samples[i*info.Channels+c]
		}
		mono[i] = sum / float64(info.Channels)
	}
	return mono, nil
}
