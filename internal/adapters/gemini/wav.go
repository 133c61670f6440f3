package gemini

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"
)

const (
	defaultSampleRate = 24000
	pcmChannels       = 1
	pcmBitsPerSample  = 16
)

// sampleRate reads the rate parameter of an "audio/L16;codec=pcm;rate=24000"
// MIME type.
func sampleRate(mimeType string) int {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		if rate, err := strconv.Atoi(value); err == nil && rate > 0 {
			return rate
		}
	}
	return defaultSampleRate
}

// EncodeWAV prefixes raw 16-bit mono little-endian PCM with a RIFF header.
func EncodeWAV(pcm []byte, rate int) []byte {
	blockAlign := pcmChannels * pcmBitsPerSample / 8
	byteRate := rate * blockAlign

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(pcmChannels))
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(pcmBitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
