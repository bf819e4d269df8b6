package probe

import (
	"MigraScope/internal/model"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the PacketRecord message:
//
//	message PacketRecord {
//	  int64  timestamp_unix_nano = 1;
//	  string src_ip              = 2;
//	  string dst_ip              = 3;
//	  uint32 protocol            = 4;
//	  uint64 length              = 5;
//	  uint32 ttl                 = 6;
//	}
const (
	fieldTimestamp protowire.Number = 1
	fieldSrcIP     protowire.Number = 2
	fieldDstIP     protowire.Number = 3
	fieldProtocol  protowire.Number = 4
	fieldLength    protowire.Number = 5
	fieldTTL       protowire.Number = 6
)

// Marshal encodes a record in protobuf wire format.
func Marshal(rec model.PacketRecord) []byte {
	b := make([]byte, 0, 32+len(rec.SrcIP)+len(rec.DstIP))
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Timestamp.UnixNano()))
	b = protowire.AppendTag(b, fieldSrcIP, protowire.BytesType)
	b = protowire.AppendString(b, rec.SrcIP)
	b = protowire.AppendTag(b, fieldDstIP, protowire.BytesType)
	b = protowire.AppendString(b, rec.DstIP)
	b = protowire.AppendTag(b, fieldProtocol, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Protocol))
	b = protowire.AppendTag(b, fieldLength, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Length))
	b = protowire.AppendTag(b, fieldTTL, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.TTL))
	return b
}

// Unmarshal decodes a record produced by Marshal. Unknown fields are skipped.
func Unmarshal(b []byte) (model.PacketRecord, error) {
	var rec model.PacketRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldSrcIP && typ == protowire.BytesType:
			rec.SrcIP, n = protowire.ConsumeString(b)
		case num == fieldDstIP && typ == protowire.BytesType:
			rec.DstIP, n = protowire.ConsumeString(b)
		case typ == protowire.VarintType && num >= fieldTimestamp && num <= fieldTTL:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n >= 0 {
				if err := setVarint(&rec, num, v); err != nil {
					return rec, err
				}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return rec, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return rec, nil
}

func setVarint(rec *model.PacketRecord, num protowire.Number, v uint64) error {
	switch num {
	case fieldTimestamp:
		rec.Timestamp = time.Unix(0, int64(v)).UTC()
	case fieldProtocol:
		if v > math.MaxUint8 {
			return fmt.Errorf("protocol %d out of range", v)
		}
		rec.Protocol = uint8(v)
	case fieldLength:
		if v > math.MaxInt32 {
			return fmt.Errorf("length %d out of range", v)
		}
		rec.Length = int(v)
	case fieldTTL:
		if v > math.MaxUint8 {
			return fmt.Errorf("ttl %d out of range", v)
		}
		rec.TTL = uint8(v)
	default:
		return fmt.Errorf("unexpected varint field %d", num)
	}
	return nil
}
