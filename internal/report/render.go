// Package report renders analysis results into the plain-text report format
// and provides file writers for finished runs.
package report

import (
	"MigraScope/internal/model"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

const title = "VM Migration Traffic Analysis Report"

// Render formats result as the text report. Downstream tools scrape the
// "Yes"/"No" tokens, so the layout is fixed.
func Render(result *model.AnalysisResult) string {
	var b strings.Builder
	// strings.Builder never returns write errors.
	_ = Write(&b, result)
	return b.String()
}

// Write streams the text report for result to w.
func Write(w io.Writer, result *model.AnalysisResult) error {
	if result == nil {
		result = &model.AnalysisResult{}
	}

	lines := []string{
		title,
		strings.Repeat("=", 34),
		"",
		"Basic Statistics:",
		fmt.Sprintf("Total Packets: %s", humanize.Comma(int64(result.TotalPackets))),
		fmt.Sprintf("Total Traffic: %s bytes", humanize.Comma(result.TotalBytes)),
		fmt.Sprintf("Unique IPs: %s", humanize.Comma(int64(result.UniqueIPs))),
		"",
		"Protocol Distribution:",
	}
	for _, pc := range result.ProtocolDistribution {
		lines = append(lines, fmt.Sprintf("Protocol %d: %s packets", pc.Protocol, humanize.Comma(int64(pc.Packets))))
	}
	lines = append(lines,
		"",
		"Migration Traffic Indicators:",
		fmt.Sprintf("High Bandwidth: %s", yesNo(result.Indicators.HighBandwidth)),
		fmt.Sprintf("Consistent Traffic: %s", yesNo(result.Indicators.ConsistentTraffic)),
		fmt.Sprintf("Long Duration: %s", yesNo(result.Indicators.LongDuration)),
	)

	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
