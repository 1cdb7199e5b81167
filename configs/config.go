package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type R2 struct {
	AccountID  string `env:"R2_ACCOUNT_ID"`
	AccessKey  string `env:"R2_ACCESS_KEY"`
	SecretKey  string `env:"R2_SECRET_KEY"`
	BucketName string `env:"R2_BUCKET_NAME"`
	PublicURL  string `env:"R2_PUBLIC_URL"`
}

type Ledger struct {
	BroadcastURL      string `env:"LEDGER_BROADCAST_URL" env-default:"https://hivesigner.com"`
	RPCURL            string `env:"LEDGER_RPC_URL" env-default:"https://api.hive.blog"`
	ContainerAccount  string `env:"LEDGER_CONTAINER_ACCOUNT" env-default:"peak.snaps"`
	ReservedTag       string `env:"LEDGER_RESERVED_TAG" env-default:"snaps"`
	CommunityTag      string `env:"LEDGER_COMMUNITY_TAG" env-default:"hive-178315"`
	Beneficiary       string `env:"LEDGER_BENEFICIARY" env-default:"snapie"`
	BeneficiaryWeight uint16 `env:"LEDGER_BENEFICIARY_WEIGHT" env-default:"1000"`
	MaxAcceptedPayout string `env:"LEDGER_MAX_PAYOUT" env-default:"100000.000 HBD"`
}

type ImageHost struct {
	Provider  string `env:"IMAGE_HOST_PROVIDER" env-default:"hive"`
	URL       string `env:"IMAGE_HOST_URL" env-default:"https://images.hive.blog"`
	SignerURL string `env:"SIGNER_URL" env-default:"http://localhost:3100/sign"`
}

type Video struct {
	APIKey       string `env:"VIDEO_API_KEY"`
	UploadURL    string `env:"VIDEO_UPLOAD_URL" env-default:"https://embed.3speak.tv/uploads"`
	ThumbnailURL string `env:"VIDEO_THUMBNAIL_URL" env-default:"https://embed.3speak.tv/video"`
	FrontendApp  string `env:"VIDEO_FRONTEND_APP" env-default:"snapie"`
	ChunkSize    int64  `env:"VIDEO_CHUNK_SIZE" env-default:"5242880"`
	FFmpegPath   string `env:"FFMPEG_PATH" env-default:"ffmpeg"`
	FFprobePath  string `env:"FFPROBE_PATH" env-default:"ffprobe"`
}

type IPFS struct {
	UploadURL     string `env:"IPFS_UPLOAD_URL" env-default:"https://ipfs.3speak.tv/api/v0/add"`
	GatewayDomain string `env:"IPFS_GATEWAY_DOMAIN" env-default:"ipfs.3speak.tv"`
}

type Config struct {
	Env           string        `env:"APP_ENV" env-default:"production"`
	Port          string        `env:"PORT" env-default:"3000"`
	PostgresURI   string        `env:"POSTGRES_URI"`
	SecretKey     string        `env:"SECRET_KEY"`
	CookieName    string        `env:"COOKIE_NAME" env-default:"composer_session"`
	FrontendURL   string        `env:"FRONTEND_URL" env-default:"http://localhost:5173"`
	AppName       string        `env:"APP_NAME" env-default:"snapcomposer/1.0"`
	DraftTTL      time.Duration `env:"DRAFT_TTL" env-default:"2h"`
	SubmitRatePer time.Duration `env:"SUBMIT_RATE_PER" env-default:"2s"`
	Ledger        Ledger
	ImageHost     ImageHost
	R2            R2
	Video         Video
	IPFS          IPFS
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
