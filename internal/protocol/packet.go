// Package protocol implements the Frostbite remote-administration wire
// format: a 12-byte little-endian header followed by length-prefixed,
// NUL-terminated words.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// PacketHeaderSize is sequence (4) + total size (4) + word count (4).
	PacketHeaderSize = 12

	// MaxPacketSize bounds a single packet on the wire. The largest
	// legitimate packets are plugin listings; 16 MiB leaves generous room.
	MaxPacketSize = 16 << 20

	// MaxWords bounds the number of words in a single packet.
	MaxWords = 1 << 16

	originServerBit = 1 << 31
	responseBit     = 1 << 30
	sequenceMask    = responseBit - 1
)

// Packet is the unit of request, response and event: an ordered list of
// protocol words plus a correlation sequence number. Word 0 of a request
// is the command name. A response carries the sequence number of the
// request it answers.
type Packet struct {
	Sequence     uint32
	Words        []string
	OriginServer bool // set when the packet originated on the server side
	Response     bool // set on responses, clear on requests
}

// NewRequest builds a client-style request packet.
func NewRequest(sequence uint32, words ...string) Packet {
	return Packet{Sequence: sequence, Words: words}
}

// NewServerRequest builds a server-originated request (an event
// notification pushed to a controller).
func NewServerRequest(sequence uint32, words ...string) Packet {
	return Packet{Sequence: sequence, Words: words, OriginServer: true}
}

// Respond builds the response to p carrying the given words. The
// response keeps p's sequence number and origin so the controller can
// correlate it.
func (p Packet) Respond(words ...string) Packet {
	return Packet{
		Sequence:     p.Sequence,
		Words:        words,
		OriginServer: p.OriginServer,
		Response:     true,
	}
}

// IsRequest reports whether p is a request.
func (p Packet) IsRequest() bool {
	return !p.Response
}

// Command returns the first word verbatim, or "" for an empty packet.
func (p Packet) Command() string {
	if len(p.Words) == 0 {
		return ""
	}
	return p.Words[0]
}

// Size returns the encoded size of p in bytes.
func (p Packet) Size() int {
	n := PacketHeaderSize
	for _, w := range p.Words {
		n += 4 + len(w) + 1
	}
	return n
}

// Marshal encodes p into wire bytes.
func (p Packet) Marshal() ([]byte, error) {
	size := p.Size()
	if size > MaxPacketSize {
		return nil, fmt.Errorf("packet size %d exceeds max %d", size, MaxPacketSize)
	}
	if len(p.Words) > MaxWords {
		return nil, fmt.Errorf("packet word count %d exceeds max %d", len(p.Words), MaxWords)
	}
	if p.Sequence > sequenceMask {
		return nil, fmt.Errorf("sequence number %d exceeds 30 bits", p.Sequence)
	}

	seq := p.Sequence
	if p.OriginServer {
		seq |= originServerBit
	}
	if p.Response {
		seq |= responseBit
	}

	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, seq)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(p.Words)))
	for _, w := range p.Words {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w)))
		buf = append(buf, w...)
		buf = append(buf, 0)
	}
	return buf, nil
}

// WritePacket encodes p and writes it to w.
func WritePacket(w io.Writer, p Packet) error {
	buf, err := p.Marshal()
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing packet: %w", err)
	}
	return nil
}

// ReadPacket reads one packet from r.
func ReadPacket(r io.Reader) (Packet, error) {
	var header [PacketHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Packet{}, fmt.Errorf("reading packet header: %w", err)
	}

	seq := binary.LittleEndian.Uint32(header[0:4])
	size := binary.LittleEndian.Uint32(header[4:8])
	wordCount := binary.LittleEndian.Uint32(header[8:12])

	if size < PacketHeaderSize || size > MaxPacketSize {
		return Packet{}, fmt.Errorf("invalid packet size: %d", size)
	}
	if wordCount > MaxWords {
		return Packet{}, fmt.Errorf("invalid word count: %d", wordCount)
	}

	body := make([]byte, size-PacketHeaderSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, fmt.Errorf("reading packet body: %w", err)
	}

	p := Packet{
		Sequence:     seq & sequenceMask,
		OriginServer: seq&originServerBit != 0,
		Response:     seq&responseBit != 0,
		Words:        make([]string, 0, wordCount),
	}

	off := 0
	for i := uint32(0); i < wordCount; i++ {
		if off+4 > len(body) {
			return Packet{}, fmt.Errorf("truncated word %d length", i)
		}
		wlen := int(binary.LittleEndian.Uint32(body[off : off+4]))
		off += 4
		if wlen < 0 || off+wlen+1 > len(body) {
			return Packet{}, fmt.Errorf("truncated word %d payload", i)
		}
		if body[off+wlen] != 0 {
			return Packet{}, fmt.Errorf("word %d is not NUL terminated", i)
		}
		p.Words = append(p.Words, string(body[off:off+wlen]))
		off += wlen + 1
	}
	if off != len(body) {
		return Packet{}, fmt.Errorf("packet has %d trailing bytes", len(body)-off)
	}

	return p, nil
}
