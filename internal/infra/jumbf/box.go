// Package jumbf implements the box-based container that carries the
// provenance manifest inside a JPEG: JUMBF superboxes (ISO 19566-5) holding
// the claim, its signature, and the signing certificate, transported in
// APP11 marker segments.
package jumbf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	typeJUMB = "jumb"
	typeJUMD = "jumd"
	typeJSON = "json"
	typeBFDB = "bfdb"

	labelStore       = "c2pa"
	labelClaim       = "c2pa.claim"
	labelSignature   = "c2pa.signature"
	labelCredentials = "c2pa.credentials"
)

// JUMBF content-type UUIDs: four-character code followed by
// 0011-0010-8000-00AA00389B71.
var (
	uuidStore  = contentTypeUUID(labelStore)
	uuidJSON   = contentTypeUUID(typeJSON)
	uuidBinary = contentTypeUUID(typeBFDB)
)

func contentTypeUUID(fourcc string) []byte {
	id := make([]byte, 16)
	copy(id, fourcc[:4])
	copy(id[4:], []byte{0x00, 0x11, 0x00, 0x10, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71})
	return id
}

// Manifest is the embedded provenance record: the claim JSON, one signature
// over the canonical claim bytes, and the signing certificate.
type Manifest struct {
	Claim       []byte
	Signature   []byte
	Certificate []byte
}

// Encode serializes the manifest as one jumb superbox.
func (m Manifest) Encode() ([]byte, error) {
	if len(m.Claim) == 0 || len(m.Signature) == 0 || len(m.Certificate) == 0 {
		return nil, errors.New("jumbf: claim, signature, and certificate are all required")
	}
	claim, err := superbox(uuidJSON, labelClaim, box(typeJSON, m.Claim))
	if err != nil {
		return nil, err
	}
	signature, err := superbox(uuidBinary, labelSignature, box(typeBFDB, m.Signature))
	if err != nil {
		return nil, err
	}
	credentials, err := superbox(uuidBinary, labelCredentials, box(typeBFDB, m.Certificate))
	if err != nil {
		return nil, err
	}
	return superbox(uuidStore, labelStore, concat(claim, signature, credentials))
}

// Decode parses a superbox produced by Encode, matching children by label.
func Decode(data []byte) (Manifest, error) {
	payload, err := openSuperbox(data, labelStore)
	if err != nil {
		return Manifest{}, err
	}

	var m Manifest
	for len(payload) > 0 {
		child, rest, err := readBox(payload)
		if err != nil {
			return Manifest{}, err
		}
		payload = rest
		if child.boxType != typeJUMB {
			continue
		}
		label, content, err := describeSuperbox(child.content)
		if err != nil {
			return Manifest{}, err
		}
		inner, _, err := readBox(content)
		if err != nil {
			return Manifest{}, err
		}
		switch label {
		case labelClaim:
			m.Claim = inner.content
		case labelSignature:
			m.Signature = inner.content
		case labelCredentials:
			m.Certificate = inner.content
		}
	}
	if m.Claim == nil || m.Signature == nil || m.Certificate == nil {
		return Manifest{}, errors.New("jumbf: manifest store is incomplete")
	}
	return m, nil
}

type rawBox struct {
	boxType string
	content []byte
}

func box(boxType string, content []byte) []byte {
	out := make([]byte, 8+len(content))
	binary.BigEndian.PutUint32(out, uint32(8+len(content)))
	copy(out[4:8], boxType)
	copy(out[8:], content)
	return out
}

func superbox(contentType []byte, label string, content []byte) ([]byte, error) {
	if bytes.ContainsAny([]byte(label), "\x00") {
		return nil, fmt.Errorf("jumbf: label %q contains NUL", label)
	}
	// toggles 0x03: requestable, label present
	desc := make([]byte, 0, 17+len(label)+1)
	desc = append(desc, contentType...)
	desc = append(desc, 0x03)
	desc = append(desc, label...)
	desc = append(desc, 0x00)
	return box(typeJUMB, concat(box(typeJUMD, desc), content)), nil
}

func readBox(data []byte) (rawBox, []byte, error) {
	if len(data) < 8 {
		return rawBox{}, nil, errors.New("jumbf: truncated box header")
	}
	length := binary.BigEndian.Uint32(data)
	if length < 8 || int(length) > len(data) {
		return rawBox{}, nil, fmt.Errorf("jumbf: box length %d out of range", length)
	}
	return rawBox{
		boxType: string(data[4:8]),
		content: data[8:length],
	}, data[length:], nil
}

// openSuperbox validates the outer jumb and its label, returning the content
// following the description box.
func openSuperbox(data []byte, wantLabel string) ([]byte, error) {
	outer, rest, err := readBox(data)
	if err != nil {
		return nil, err
	}
	if outer.boxType != typeJUMB {
		return nil, fmt.Errorf("jumbf: expected jumb box, got %q", outer.boxType)
	}
	if len(rest) != 0 {
		return nil, errors.New("jumbf: trailing data after superbox")
	}
	label, content, err := describeSuperbox(outer.content)
	if err != nil {
		return nil, err
	}
	if label != wantLabel {
		return nil, fmt.Errorf("jumbf: expected label %q, got %q", wantLabel, label)
	}
	return content, nil
}

// describeSuperbox reads the leading jumd box and returns its label plus the
// remaining superbox content.
func describeSuperbox(content []byte) (string, []byte, error) {
	desc, rest, err := readBox(content)
	if err != nil {
		return "", nil, err
	}
	if desc.boxType != typeJUMD {
		return "", nil, fmt.Errorf("jumbf: expected jumd description, got %q", desc.boxType)
	}
	if len(desc.content) < 17 {
		return "", nil, errors.New("jumbf: description box too short")
	}
	toggles := desc.content[16]
	if toggles&0x02 == 0 {
		return "", nil, errors.New("jumbf: description box has no label")
	}
	rawLabel := desc.content[17:]
	nul := bytes.IndexByte(rawLabel, 0x00)
	if nul < 0 {
		return "", nil, errors.New("jumbf: unterminated label")
	}
	return string(rawLabel[:nul]), rest, nil
}

func concat(parts ...[]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
