package audio

// Processor defines an interface for audio processing operations.
type Processor interface {
	TranscodeToBitrate(inputFile, outputFile, audioBitrate string) (float32, error)
	GetAudioDuration(inputFile string) (float32, error)
}
