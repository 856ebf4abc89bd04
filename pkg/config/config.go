package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type DB struct {
	Url             string        `envconfig:"URL"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
}

type Store struct {
	Driver string `envconfig:"DRIVER" default:"postgres"` // postgres or memory
}

type Jwt struct {
	Secret string `envconfig:"SECRET"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type Redis struct {
	URL           string `envconfig:"URL"`
	ChannelPrefix string `envconfig:"CHANNEL_PREFIX" default:"kikoba:changes:"`
}

type AMQP struct {
	URL      string        `envconfig:"URL"`
	Exchange string        `envconfig:"EXCHANGE" default:"kikoba.notifications"`
	Queue    string        `envconfig:"QUEUE" default:"kikoba.notifications"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"5s"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

type Loan struct {
	VoteMaxRetries int `envconfig:"VOTE_MAX_RETRIES" default:"3"`
}

type Penalty struct {
	Amount     decimal.Decimal `envconfig:"AMOUNT" default:"60000"`
	Threshold  time.Duration   `envconfig:"THRESHOLD" default:"720h"`
	Schedule   string          `envconfig:"SCHEDULE" default:"@every 1h"`
	MaxRetries int             `envconfig:"MAX_RETRIES" default:"3"`
}

type Bulk struct {
	CommitConcurrency int `envconfig:"COMMIT_CONCURRENCY" default:"4"`
}

type Sheets struct {
	SpreadsheetID   string `envconfig:"SPREADSHEET_ID"`
	Range           string `envconfig:"RANGE" default:"Import!A1:F"`
	CredentialsFile string `envconfig:"CREDENTIALS_FILE"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[kikoba]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env       string     `envconfig:"APP_ENV" default:"development"`
	Server    *Server    `envconfig:"SERVER"`
	Log       *Log       `envconfig:"LOG"`
	DB        *DB        `envconfig:"DATABASE"`
	Store     *Store     `envconfig:"STORE"`
	Auth      *Auth      `envconfig:"AUTH"`
	Redis     *Redis     `envconfig:"REDIS"`
	AMQP      *AMQP      `envconfig:"AMQP"`
	RateLimit *RateLimit `envconfig:"RATE_LIMIT"`
	Loan      *Loan      `envconfig:"LOAN"`
	Penalty   *Penalty   `envconfig:"PENALTY"`
	Bulk      *Bulk      `envconfig:"BULK"`
	Sheets    *Sheets    `envconfig:"SHEETS"`
}
