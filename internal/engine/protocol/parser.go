package protocol

import (
	"MigraScope/internal/model"
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrNotIP is returned for frames without an IPv4 or IPv6 layer.
var ErrNotIP = errors.New("not an IP packet")

// ParsePacket extracts IP-layer metadata from a decoded packet. Only the network
// layer is inspected; transport and payload are ignored.
func ParsePacket(packet gopacket.Packet) (model.PacketRecord, error) {
	rec := model.PacketRecord{
		Length: len(packet.Data()),
	}

	if meta := packet.Metadata(); meta != nil {
		rec.Timestamp = meta.Timestamp
		// Length is the size on the wire, which exceeds the captured
		// size when the snapshot length truncated the frame.
		if meta.Length > 0 {
			rec.Length = meta.Length
		}
	}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		rec.SrcIP = ip.SrcIP.String()
		rec.DstIP = ip.DstIP.String()
		rec.Protocol = uint8(ip.Protocol)
		rec.TTL = ip.TTL
		return rec, nil
	}

	if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		rec.SrcIP = ip.SrcIP.String()
		rec.DstIP = ip.DstIP.String()
		rec.Protocol = uint8(ip.NextHeader)
		rec.TTL = ip.HopLimit
		return rec, nil
	}

	return rec, ErrNotIP
}

// ParseData decodes a raw frame of the given link type and extracts its
// IP-layer metadata. The capture info supplies timestamp and wire length.
func ParseData(data []byte, ci gopacket.CaptureInfo, linkType gopacket.Decoder) (model.PacketRecord, error) {
	packet := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	md := packet.Metadata()
	md.CaptureInfo = ci
	return ParsePacket(packet)
}
