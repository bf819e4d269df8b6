package main

import (
	"flag"
	"io"
	"log"
	"math/rand"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/klauspost/pgzip"
)

var (
	srcHost = net.IP{192, 168, 10, 11}
	dstHost = net.IP{192, 168, 10, 12}
)

// Default QEMU migration port.
const migrationPort = 49152

func main() {
	outputFile := flag.String("o", "migration.pcap", "Output pcap file path (.gz compresses)")
	duration := flag.Duration("d", 2*time.Minute, "Span of the generated capture")
	rate := flag.Int("r", 200, "Migration packets per second")
	noise := flag.Float64("noise", 0.1, "Fraction of background packets between random hosts")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	var out io.Writer = f
	if strings.HasSuffix(*outputFile, ".gz") {
		gz := pgzip.NewWriter(f)
		defer gz.Close()
		out = gz
	}

	pcapWriter := pcapgo.NewWriter(out)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	start := time.Now().Truncate(time.Minute)
	total := int(duration.Seconds()) * *rate
	step := time.Second / time.Duration(*rate)

	log.Printf("Generating %d migration packets over %s into %s...", total, *duration, *outputFile)

	written := 0
	for i := 0; i < total; i++ {
		ts := start.Add(time.Duration(i) * step)

		// Migration stream: near-MTU TCP segments with a small ACK flow back.
		var data []byte
		if i%10 == 9 {
			data = serialize(dstHost, srcHost, migrationPort, 40000, 0)
		} else {
			data = serialize(srcHost, dstHost, 40000, migrationPort, 1400+rng.Intn(60))
		}
		writePacket(pcapWriter, ts, data)
		written++

		if rng.Float64() < *noise {
			src := net.IP{10, byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256))}
			dst := net.IP{10, byte(rng.Intn(256)), byte(rng.Intn(256)), byte(rng.Intn(256))}
			writePacket(pcapWriter, ts, serializeUDP(src, dst, 50+rng.Intn(400)))
			written++
		}

		if written%100000 == 0 {
			log.Printf("Generated %d packets...", written)
		}
	}

	log.Printf("Successfully generated %d packets into %s.", written, *outputFile)
}

func ethernet() *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
}

func serialize(src, dst net.IP, srcPort, dstPort, payloadSize int) []byte {
	ipLayer := &layers.IPv4{
		SrcIP:    src,
		DstIP:    dst,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcpLayer := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		ACK:     true,
		PSH:     payloadSize > 0,
		Window:  14600,
	}
	tcpLayer.SetNetworkLayerForChecksum(ipLayer)
	return serializeLayers(ethernet(), ipLayer, tcpLayer, gopacket.Payload(make([]byte, payloadSize)))
}

func serializeUDP(src, dst net.IP, payloadSize int) []byte {
	ipLayer := &layers.IPv4{
		SrcIP:    src,
		DstIP:    dst,
		Version:  4,
		TTL:      128,
		Protocol: layers.IPProtocolUDP,
	}
	udpLayer := &layers.UDP{SrcPort: 53, DstPort: 53000}
	udpLayer.SetNetworkLayerForChecksum(ipLayer)
	return serializeLayers(ethernet(), ipLayer, udpLayer, gopacket.Payload(make([]byte, payloadSize)))
}

func serializeLayers(l ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(buf, opts, l...); err != nil {
		log.Fatalf("Failed to serialize layers: %v", err)
	}
	return buf.Bytes()
}

func writePacket(w *pcapgo.Writer, ts time.Time, data []byte) {
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := w.WritePacket(ci, data); err != nil {
		log.Fatalf("Failed to write packet: %v", err)
	}
}
