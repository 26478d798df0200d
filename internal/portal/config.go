package portal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/nao1215/campus/pkg/middleware"
)

// Config はポータルサービスの設定。
// 起動時に一度だけ読み込み、以後は変更しない。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string
	// DatabasePath はSQLiteデータベースファイルのパス。
	DatabasePath string
	// JWTSecret はセッショントークンの署名用シークレット。
	JWTSecret string
	// TokenTTL はセッショントークンの有効期間。
	TokenTTL time.Duration
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string
	// CookieSecure はセッションCookieにSecure属性を付けるかどうか。
	CookieSecure bool
}

// LoadConfig は .env ファイル（存在する場合）と環境変数から設定を読み込む。
// JWT_SECRETが未設定の場合、ALLOW_INSECURE_SECRET=true のときのみ開発用シークレットを使用する。
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf(".envファイルの読み込みに失敗: %w", err)
	}

	allowInsecure, err := getEnvBool("ALLOW_INSECURE_SECRET", false)
	if err != nil {
		return Config{}, err
	}
	secret, err := middleware.ResolveSecret(os.Getenv("JWT_SECRET"), allowInsecure)
	if err != nil {
		return Config{}, err
	}

	ttl, err := time.ParseDuration(getEnvOr("TOKEN_TTL", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("TOKEN_TTLの形式が不正です: %w", err)
	}
	if ttl <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTLは正の値である必要があります: %s", ttl)
	}

	cookieSecure, err := getEnvBool("COOKIE_SECURE", false)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Port:         getEnvOr("PORT", "8080"),
		DatabasePath: getEnvOr("DATABASE_PATH", "/data/portal.db"),
		JWTSecret:    secret,
		TokenTTL:     ttl,
		FrontendURL:  getEnvOr("FRONTEND_URL", "http://localhost:3000"),
		CookieSecure: cookieSecure,
	}, nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvBool は環境変数を真偽値として取得する。
func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%sの形式が不正です: %q", key, v)
	}
	return b, nil
}
