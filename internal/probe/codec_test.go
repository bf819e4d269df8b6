package probe

import (
	"MigraScope/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCodec_RoundTrip(t *testing.T) {
	rec := model.PacketRecord{
		Timestamp: time.Date(2024, 7, 4, 13, 37, 0, 987654321, time.UTC),
		SrcIP:     "2001:db8::10",
		DstIP:     "2001:db8::20",
		Protocol:  6,
		Length:    9014,
		TTL:       64,
	}

	decoded, err := Unmarshal(Marshal(rec))
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestCodec_SkipsUnknownFields(t *testing.T) {
	rec := model.PacketRecord{Timestamp: time.Unix(1700000000, 0).UTC(), SrcIP: "10.0.0.1", DstIP: "10.0.0.2", Protocol: 17, Length: 60, TTL: 1}
	b := Marshal(rec)
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendString(b, "capture-host-a")
	b = protowire.AppendTag(b, 16, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 42)

	decoded, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestCodec_Errors(t *testing.T) {
	b := Marshal(model.PacketRecord{Timestamp: time.Unix(1, 0), SrcIP: "a", DstIP: "b"})
	_, err := Unmarshal(b[:len(b)-1])
	assert.Error(t, err)

	var bad []byte
	bad = protowire.AppendTag(bad, fieldTTL, protowire.VarintType)
	bad = protowire.AppendVarint(bad, 300)
	_, err = Unmarshal(bad)
	assert.Error(t, err)
}
