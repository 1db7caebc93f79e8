package config

import (
	"os"
	"strconv"
)

// Config holds the process-wide configuration for the radio core: the
// ambient HTTP/persistence/auth settings carried over from the teacher,
// plus the per-station audio defaults introduced for the streaming core.
type Config struct {
	Port         string
	MusicDir     string
	StationName  string
	MaxClients   int
	WebDir       string
	DJUsername   string
	DJPassword   string
	JWTSecret    string
	Timezone     string
	DataDir      string
	SubsonicURL  string
	SubsonicUser string
	SubsonicPass string

	// Audio pipeline / broadcaster defaults (§3, §4.2, §4.3).
	SampleRate      int
	Channels        int
	BufferSeconds   float64
	SegmentDuration float64
	PlaylistLength  int
	Bitrate         int
	MaxLeadSegments int
	VizRate         int
	FFTSize         int

	// AES defaults (§4.4).
	ModelPath            string
	MelBands             int
	NFFT                 int
	HopLength            int
	TargetFrames         int
	InferenceConcurrency int
	InferencePoolSize    int

	// Curator defaults (§4.5).
	MinEmbeddingCoverage float64
	SeedCount            int
	AnthropicAPIKey      string
	AnthropicModel       string

	// Control surface (§6).
	APIAddr     string
	ResyncCron  string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8000"),
		MusicDir:     getEnv("MUSIC_DIR", "./music"),
		StationName:  getEnv("STATION_NAME", "Denpa Radio"),
		MaxClients:   getEnvAsInt("MAX_CLIENTS", 100),
		WebDir:       getEnv("WEB_DIR", "./web/dist"),
		DJUsername:   getEnv("DJ_USERNAME", "dj"),
		DJPassword:   getEnv("DJ_PASSWORD", "denpa"),
		JWTSecret:    getEnv("JWT_SECRET", "change-me-in-production-please"),
		Timezone:     getEnv("TIMEZONE", ""),
		DataDir:      getEnv("DATA_DIR", "./data/badger"),
		SubsonicURL:  getEnv("SUBSONIC_URL", "http://localhost:4533"),
		SubsonicUser: getEnv("SUBSONIC_USER", ""),
		SubsonicPass: getEnv("SUBSONIC_PASS", ""),

		SampleRate:      getEnvAsInt("SAMPLE_RATE", 44100),
		Channels:        getEnvAsInt("CHANNELS", 2),
		BufferSeconds:   getEnvAsFloat("BUFFER_SECONDS", 10.0),
		SegmentDuration: getEnvAsFloat("SEGMENT_DURATION", 2.0),
		PlaylistLength:  getEnvAsInt("PLAYLIST_LENGTH", 5),
		Bitrate:         getEnvAsInt("BITRATE", 192),
		MaxLeadSegments: getEnvAsInt("MAX_LEAD_SEGMENTS", 3),
		VizRate:         getEnvAsInt("VIZ_RATE", 30),
		FFTSize:         getEnvAsInt("FFT_SIZE", 2048),

		ModelPath:            getEnv("MODEL_PATH", "models/audio_encoder.tflite"),
		MelBands:             getEnvAsInt("MEL_BANDS", 96),
		NFFT:                 getEnvAsInt("N_FFT", 2048),
		HopLength:            getEnvAsInt("HOP_LENGTH", 512),
		TargetFrames:         getEnvAsInt("TARGET_FRAMES", 216),
		InferenceConcurrency: getEnvAsInt("INFERENCE_CONCURRENCY", 0),
		InferencePoolSize:    getEnvAsInt("INFERENCE_POOL_SIZE", 4),

		MinEmbeddingCoverage: getEnvAsFloat("MIN_EMBEDDING_COVERAGE", 0.30),
		SeedCount:            getEnvAsInt("SEED_COUNT", 5),
		AnthropicAPIKey:      getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:       getEnv("ANTHROPIC_MODEL", ""),

		APIAddr:    getEnv("API_ADDR", ":8000"),
		ResyncCron: getEnv("RESYNC_CRON", "@every 30m"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultVal
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return value
		}
	}
	return defaultVal
}
