package jumbf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// APP11 transport per ISO 19566-5: each marker segment carries the common
// identifier "JP", a box instance number, a packet sequence number, and a
// repeat of the box header followed by a slice of the box payload.
const (
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
	markerAPP11 = 0xEB
	markerSOS   = 0xDA
	markerEOI   = 0xD9

	commonIdentifier  = 0x4A50 // "JP"
	boxInstanceNumber = 1

	// segment length field is 16-bit and counts itself
	maxSegmentPayload = 65533
	packetHeaderLen   = 16
	maxChunk          = maxSegmentPayload - packetHeaderLen
)

var ErrNoManifest = errors.New("jumbf: no manifest in image")

// Embed inserts the superbox into the image as APP11 segments placed after
// the leading APP0/APP1 run. No other byte of the image changes.
func Embed(image, superbox []byte) ([]byte, error) {
	if len(superbox) < 8 {
		return nil, errors.New("jumbf: superbox too short")
	}
	insertAt, err := insertionOffset(image)
	if err != nil {
		return nil, err
	}

	payload := superbox[8:]
	packets := splitPackets(superbox[:8], payload)

	out := make([]byte, 0, len(image)+len(packets)*packetHeaderLen+len(payload)+4*len(packets))
	out = append(out, image[:insertAt]...)
	for _, p := range packets {
		out = append(out, p...)
	}
	out = append(out, image[insertAt:]...)
	return out, nil
}

// Extract reassembles the embedded superbox from the image's APP11 segments.
func Extract(image []byte) ([]byte, error) {
	type packet struct {
		seq     uint32
		header  []byte
		content []byte
	}
	var packets []packet

	err := scan(image, func(marker byte, start, end int) bool {
		if marker != markerAPP11 {
			return false
		}
		body := image[start+4 : end]
		if len(body) < packetHeaderLen || binary.BigEndian.Uint16(body) != commonIdentifier {
			return false
		}
		packets = append(packets, packet{
			seq:     binary.BigEndian.Uint32(body[4:8]),
			header:  body[8:16],
			content: body[16:],
		})
		return false
	})
	if err != nil {
		return nil, err
	}
	if len(packets) == 0 {
		return nil, ErrNoManifest
	}

	sort.Slice(packets, func(i, j int) bool { return packets[i].seq < packets[j].seq })

	header := packets[0].header
	out := make([]byte, 0, len(header)+len(packets)*maxChunk)
	out = append(out, header...)
	for i, p := range packets {
		if p.seq != uint32(i+1) {
			return nil, fmt.Errorf("jumbf: packet sequence gap at %d", p.seq)
		}
		if string(p.header) != string(header) {
			return nil, errors.New("jumbf: inconsistent packet headers")
		}
		out = append(out, p.content...)
	}
	if want := binary.BigEndian.Uint32(header); int(want) != len(out) {
		return nil, fmt.Errorf("jumbf: reassembled %d bytes, box declares %d", len(out), want)
	}
	return out, nil
}

// Strip removes every APP11 segment carrying our common identifier and
// returns the image otherwise byte-identical.
func Strip(image []byte) ([]byte, error) {
	out := make([]byte, 0, len(image))
	last := 0
	err := scan(image, func(marker byte, start, end int) bool {
		if marker != markerAPP11 {
			return false
		}
		body := image[start+4 : end]
		if len(body) < 2 || binary.BigEndian.Uint16(body) != commonIdentifier {
			return false
		}
		out = append(out, image[last:start]...)
		last = end
		return false
	})
	if err != nil {
		return nil, err
	}
	out = append(out, image[last:]...)
	return out, nil
}

func splitPackets(boxHeader, payload []byte) [][]byte {
	var packets [][]byte
	seq := uint32(1)
	for first := true; first || len(payload) > 0; first = false {
		chunk := payload
		if len(chunk) > maxChunk {
			chunk = chunk[:maxChunk]
		}
		payload = payload[len(chunk):]

		segLen := 2 + packetHeaderLen + len(chunk)
		p := make([]byte, 0, 2+segLen)
		p = append(p, 0xFF, markerAPP11)
		p = append(p, byte(segLen>>8), byte(segLen))
		p = binary.BigEndian.AppendUint16(p, commonIdentifier)
		p = binary.BigEndian.AppendUint16(p, boxInstanceNumber)
		p = binary.BigEndian.AppendUint32(p, seq)
		p = append(p, boxHeader...)
		p = append(p, chunk...)
		packets = append(packets, p)
		seq++
	}
	return packets
}

// insertionOffset returns the position after SOI and any leading APP0/APP1
// segments, where C2PA manifests conventionally sit.
func insertionOffset(image []byte) (int, error) {
	if len(image) < 2 || image[0] != 0xFF || image[1] != 0xD8 {
		return 0, errors.New("jumbf: not a JPEG (missing SOI)")
	}
	offset := 2
	err := scan(image, func(marker byte, start, end int) bool {
		if marker == markerAPP0 || marker == markerAPP1 {
			offset = end
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return offset, nil
}

// scan walks marker segments between SOI and SOS/EOI, invoking fn for each
// length-bearing segment with its absolute [start, end) byte range. fn
// returning true stops the walk.
func scan(image []byte, fn func(marker byte, start, end int) bool) error {
	if len(image) < 2 || image[0] != 0xFF || image[1] != 0xD8 {
		return errors.New("jumbf: not a JPEG (missing SOI)")
	}
	i := 2
	for i+1 < len(image) {
		if image[i] != 0xFF {
			return fmt.Errorf("jumbf: expected marker at offset %d", i)
		}
		marker := image[i+1]
		switch {
		case marker == markerEOI:
			return nil
		case marker == markerSOS:
			// entropy-coded data follows; nothing to walk past here
			return nil
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
		default:
			if i+4 > len(image) {
				return errors.New("jumbf: truncated segment header")
			}
			length := int(binary.BigEndian.Uint16(image[i+2 : i+4]))
			if length < 2 || i+2+length > len(image) {
				return fmt.Errorf("jumbf: segment length %d out of range at offset %d", length, i)
			}
			end := i + 2 + length
			if fn(marker, i, end) {
				return nil
			}
			i = end
		}
	}
	return nil
}
