package rtpjpeg

import (
	"errors"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/jpeg"

	"github.com/ovframework/ovf/internal/frame"
	"github.com/ovframework/ovf/internal/logger"
	"github.com/ovframework/ovf/internal/media"
)

// ErrMorePacketsNeeded is returned when more packets are needed to complete a frame.
var ErrMorePacketsNeeded = errors.New("need more packets")

type fragment struct {
	data   []byte
	tables []byte
}

// Assembler turns RTP/JPEG packets of a single SSRC into complete JPEG images.
type Assembler struct {
	Logger logger.Writer

	fragments []fragment
	size      int
	timestamp uint32
	last      *media.Packet
}

// Push adds a packet. It returns a frame when the packet completes one.
func (a *Assembler) Push(pkt *media.Packet) (frame.Frame, error) {
	var h Header
	n, err := h.Unmarshal(pkt.Payload)
	if err != nil {
		a.reset()
		return nil, err
	}

	if len(a.fragments) != 0 && pkt.Timestamp != a.timestamp {
		a.Logger.Log(logger.Warn, "new frame started before previous completed, dropping incomplete frame")
		a.reset()
	}

	a.timestamp = pkt.Timestamp
	a.last = pkt

	if int(h.FragmentOffset) != a.size {
		expected := a.size
		a.reset()
		return nil, fmt.Errorf("fragment offset mismatch: expected %d, got %d", expected, h.FragmentOffset)
	}

	var tables []byte

	if h.FragmentOffset == 0 && h.Quantization >= 128 {
		var qth QuantizationTableHeader
		var n2 int
		n2, err = qth.Unmarshal(pkt.Payload[n:])
		if err != nil {
			a.Logger.Log(logger.Warn, "invalid quantization table header: %v", err)
		} else {
			switch len(qth.Tables) {
			case 128:
			case 64:
				a.Logger.Log(logger.Debug, "quantization table consists of 64 bytes instead of 128, this may lead to broken frame")
			default:
				a.Logger.Log(logger.Warn, "quantization table has unexpected size: %d bytes", len(qth.Tables))
			}

			tables = qth.Tables
			n += n2
		}
	}

	if n >= len(pkt.Payload) {
		a.reset()
		return nil, fmt.Errorf("invalid packet: data offset beyond packet length")
	}

	data := pkt.Payload[n:]
	a.fragments = append(a.fragments, fragment{
		data:   data,
		tables: tables,
	})
	a.size += len(data)

	if !pkt.Marker {
		return nil, ErrMorePacketsNeeded
	}

	defer a.reset()

	return &frame.Video{
		Base: frame.Base{
			Data:       a.assemble(&h),
			IsKeyFrame: true,
			ReceivedAt: a.last.ReceivedAt,
			NTP:        a.last.NTP,
			SSRC:       a.last.SSRC,
			Codec:      media.CodecMJPEG,
			ClockRate:  a.last.ClockRate,
		},
		Width:  h.Width,
		Height: h.Height,
	}, nil
}

func (a *Assembler) reset() {
	a.fragments = nil
	a.size = 0
}

func (a *Assembler) quantizationTables(h *Header) [][]byte {
	tables := a.fragments[0].tables

	switch len(tables) {
	case 128:
		return [][]byte{tables[:64], tables[64:]}

	case 64:
		return [][]byte{tables}
	}

	if h.Quantization >= 128 {
		a.Logger.Log(logger.Warn, "Q=%d indicates explicit tables, but none found, falling back to calculated tables",
			h.Quantization)
	}

	return calculatedTables(h.Quantization)
}

func (a *Assembler) assemble(h *Header) []byte {
	qts := a.quantizationTables(h)

	buf := make([]byte, 0, a.size+1024)
	buf = append(buf, 0xFF, jpeg.MarkerStartOfImage)

	var dqt jpeg.DefineQuantizationTable
	for i, t := range qts {
		dqt.Tables = append(dqt.Tables, jpeg.QuantizationTable{
			ID:   uint8(i),
			Data: t,
		})
	}
	buf = dqt.Marshal(buf)

	buf = jpeg.StartOfFrame1{
		Type:                   h.Type,
		Width:                  h.Width,
		Height:                 h.Height,
		QuantizationTableCount: uint8(len(qts)),
	}.Marshal(buf)

	buf = huffmanTable(0, 0, huffmanDCLuminance).Marshal(buf)
	buf = huffmanTable(1, 0, huffmanACLuminance).Marshal(buf)
	buf = huffmanTable(0, 1, huffmanDCChrominance).Marshal(buf)
	buf = huffmanTable(1, 1, huffmanACChrominance).Marshal(buf)

	buf = jpeg.StartOfScan{}.Marshal(buf)

	for _, f := range a.fragments {
		buf = append(buf, f.data...)
	}

	return append(buf, 0xFF, jpeg.MarkerEndOfImage)
}

// huffmanTable builds a DHT segment from code lengths (16 bytes) followed by symbols.
func huffmanTable(class int, number int, table []byte) jpeg.DefineHuffmanTable {
	return jpeg.DefineHuffmanTable{
		Codes:       table[:16],
		Symbols:     table[16:],
		TableNumber: number,
		TableClass:  class,
	}
}
