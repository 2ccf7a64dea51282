package mediasvc

// MediaConfig holds configuration parameters for the media service.
type MediaConfig struct {
	// MaxSize is the maximum accepted size of a single file in bytes (20MB).
	MaxSize int64 `env:"MAX_SIZE" default:"20971520"`
}
