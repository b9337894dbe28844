package speech

import (
	"encoding/binary"
	"math"
)

// WavRMS computes the normalized RMS volume of a 16-bit PCM WAV clip.
// Returns 0 for anything it cannot parse; volume is a presentation
// signal, so malformed audio is not an error.
func WavRMS(wav []byte) float64 {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return 0
	}

	var pcm []byte
	bitsPerSample := uint16(16)
	format := uint16(1)

	// Walk the RIFF chunks for fmt and data.
	for off := 12; off+8 <= len(wav); {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(wav) {
			return 0
		}
		switch id {
		case "fmt ":
			if size >= 16 {
				format = binary.LittleEndian.Uint16(wav[body : body+2])
				bitsPerSample = binary.LittleEndian.Uint16(wav[body+14 : body+16])
			}
		case "data":
			pcm = wav[body : body+size]
		}
		// Chunks are word aligned.
		off = body + size + size%2
	}

	if pcm == nil || format != 1 || bitsPerSample != 16 {
		return 0
	}

	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i : 2*i+2]))
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum/float64(n)) / 32768.0
	return math.Round(math.Min(math.Max(rms, 0), 1)*10000) / 10000
}
