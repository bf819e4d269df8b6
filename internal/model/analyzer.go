package model

// Analyzer turns a finite record set into an AnalysisResult.
type Analyzer interface {
	Analyze(records []PacketRecord) (*AnalysisResult, error)
}
