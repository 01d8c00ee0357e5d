package config

import "time"

type Config struct {
	DiscordToken          string `env:"DISCORD_TOKEN"`
	SpotifyClientID       string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret   string `env:"SPOTIFY_CLIENT_SECRET"`
	DataDir               string `env:"DATA_DIR" envDefault:"./data"`
	BotStatus             string `env:"BOT_STATUS" envDefault:"online"` // online/dnd/idle
	BotActivity           string `env:"BOT_ACTIVITY" envDefault:"music"`
	RegisterCommandsOnBot bool   `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`

	EnableSponsorBlock     bool `env:"ENABLE_SPONSORBLOCK" envDefault:"false"`
	SponsorBlockTimeoutMin int  `env:"SPONSORBLOCK_TIMEOUT" envDefault:"5"`

	SearchSource       string        `env:"SEARCH_SOURCE" envDefault:"youtube"` // youtube/music
	SearchResults      int           `env:"SEARCH_RESULTS" envDefault:"10"`
	ExtractWorkers     int           `env:"EXTRACT_WORKERS" envDefault:"4"`
	ResolveTimeout     time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"45s"`
	YouTubeCookiesPath string        `env:"YOUTUBE_COOKIES_PATH"`
	YTDLPProxy         string        `env:"YTDLP_PROXY"`

	ProgressInterval time.Duration `env:"PROGRESS_INTERVAL" envDefault:"10s"`
	QueueCapacity    int           `env:"QUEUE_CAPACITY" envDefault:"500"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

const (
	SearchSourceYouTube = "youtube"
	SearchSourceMusic   = "music"
)

func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}
