package speech

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/example/vocastar/internal/ai"
)

// EncodeWAV wraps mono audio in a 16-bit PCM WAV container
func EncodeWAV(audio *ai.Audio) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataLen := len(audio.Samples) * 2
	byteRate := audio.SampleRate * channels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(audio.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range audio.Samples {
		v := math.Round(float64(s) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		_ = binary.Write(buf, binary.LittleEndian, int16(v))
	}
	return buf.Bytes()
}
