package portal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/campus/pkg/middleware"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var (
	// ErrUserNotFound はユーザーが存在しない場合のエラー。
	ErrUserNotFound = errors.New("ユーザーが見つかりません")
	// ErrEmailTaken はメールアドレスが既に登録されている場合のエラー。
	ErrEmailTaken = errors.New("メールアドレスは既に登録されています")
	// ErrInvalidCredentials はメールアドレスまたはパスワードが誤っている場合のエラー。
	ErrInvalidCredentials = errors.New("メールアドレスまたはパスワードが正しくありません")
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 8

// User はポータルの利用者。
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         middleware.Role
	CreatedAt    time.Time
	LastLoginAt  sql.NullTime
	passwordHash string
}

// NewUser はユーザー作成時の入力。
type NewUser struct {
	Email       string
	Password    string
	DisplayName string
	Role        middleware.Role
}

// Store はSQLiteに保存されたユーザー情報へのアクセスを提供する。
type Store struct {
	db *sql.DB
}

// OpenStore はSQLiteデータベースを開き、マイグレーションを適用したStoreを返す。
func OpenStore(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		// :memory: は接続ごとに別DBになる
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &Store{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser はパスワードをbcryptでハッシュ化してユーザーを登録する。
func (s *Store) CreateUser(ctx context.Context, in NewUser) (User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("メールアドレスの形式が不正です: %q", in.Email)
	}
	if !in.Role.Valid() {
		return User{}, fmt.Errorf("%w: %q", middleware.ErrUnknownRole, in.Role)
	}
	if len(in.Password) < minPasswordLength {
		return User{}, fmt.Errorf("パスワードは%d文字以上である必要があります", minPasswordLength)
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = email
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}

	u := User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		Role:         in.Role,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		passwordHash: string(hash),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.passwordHash, u.DisplayName, string(u.Role), u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("%w: %s", ErrEmailTaken, email)
		}
		return User{}, fmt.Errorf("ユーザーの登録に失敗: %w", err)
	}
	return u, nil
}

const userColumns = `id, email, password_hash, display_name, role, created_at, last_login_at`

// GetUserByID はIDでユーザーを取得する。
func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail はメールアドレスでユーザーを取得する。
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email))
	return scanUser(row)
}

// ListUsers は全ユーザーをメールアドレス順に返す。
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Authenticate はメールアドレスとパスワードを照合する。
// ユーザーが存在しない場合もパスワード不一致と同じErrInvalidCredentialsを返す。
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// UpdateLastLogin は最終ログイン日時を現在時刻に更新する。
func (s *Store) UpdateLastLogin(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("最終ログイン日時の更新に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("最終ログイン日時の更新に失敗: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.passwordHash, &u.DisplayName, &role, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの読み取りに失敗: %w", err)
	}

	u.Role, err = middleware.ParseRole(role)
	if err != nil {
		return User{}, fmt.Errorf("ユーザー %s: %w", u.ID, err)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isUniqueViolation はSQLiteの一意制約違反かどうかを返す。
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
