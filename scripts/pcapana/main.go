package main

import (
	"MigraScope/internal/model"
	"MigraScope/internal/table"
	"MigraScope/pkg/pcap"
	"flag"
	"fmt"
	"log"
	"os"
)

func main() {
	limit := flag.Int("n", 5, "Number of records to print (0 prints all)")
	output := flag.String("o", "", "Also convert the whole capture into this table (.csv or .csv.gz)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana/main.go [-n N] [-o table.csv] <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	reader, err := pcap.NewReader(pcapFilePath)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	out := make(chan model.PacketRecord, 1024)
	errc := make(chan error, 1)
	go func() { errc <- reader.ReadPackets(out) }()

	var records []model.PacketRecord
	i := 0
	for rec := range out {
		if *limit == 0 || i < *limit {
			fmt.Printf("[%s] %s -> %s proto=%d len=%d ttl=%d\n",
				rec.Timestamp.Format("15:04:05.000"),
				rec.SrcIP, rec.DstIP, rec.Protocol, rec.Length, rec.TTL,
			)
		}
		i++
		if *output != "" {
			records = append(records, rec)
		}
	}
	if err := <-errc; err != nil {
		log.Fatalf("Failed to read %s: %v", pcapFilePath, err)
	}
	fmt.Printf("%d IP packets, %d non-IP frames skipped\n", i, reader.Skipped())

	if *output != "" {
		if err := table.Save(*output, records); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Table written to %s\n", *output)
	}
}
