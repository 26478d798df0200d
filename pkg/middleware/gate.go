package middleware

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	dashboardPrefix  = "/dashboard"
	defaultLoginPath = "/login"
)

// ErrRoleMismatch は認証済みユーザーのロールがパスの要求ロールと異なる場合のエラー。
var ErrRoleMismatch = errors.New("ロールが一致しません")

// RouteRule はパス接頭辞と、そのパスへのアクセスに必要なロールの対応。
type RouteRule struct {
	// Prefix は保護対象のパス接頭辞（例: "/dashboard/admin"）。
	Prefix string
	// Role はアクセスに必要なロール。
	Role Role
}

// matches はpathがPrefix自身、またはPrefix配下のパスであるかを返す。
// "/dashboard/admin" は "/dashboard/administrator" に一致しない。
func (r RouteRule) matches(path string) bool {
	return pathHasPrefix(path, r.Prefix)
}

// DefaultRouteRules は既定のルート分類表を返す。
func DefaultRouteRules() []RouteRule {
	return []RouteRule{
		{Prefix: RoleAdmin.DashboardPath(), Role: RoleAdmin},
		{Prefix: RoleTeacher.DashboardPath(), Role: RoleTeacher},
		{Prefix: RoleClerk.DashboardPath(), Role: RoleClerk},
	}
}

// GateConfig はGateの設定。
type GateConfig struct {
	// Secret はトークン検証に使う署名用シークレット。必須。
	Secret string
	// Scope はGateが適用されるパス接頭辞。空の場合は "/dashboard"。
	Scope string
	// LoginPath は未認証時のリダイレクト先。空の場合は "/login"。
	LoginPath string
	// Rules はルート分類表。nilの場合は DefaultRouteRules()。
	Rules []RouteRule
	// Logger は検証失敗を記録するロガー。nilの場合は標準ロガー。
	Logger *log.Logger
}

// Gate はCookieのセッショントークンとリクエストパスから
// 通過・ログインへのリダイレクト・自分のダッシュボードへのリダイレクトを決定する。
// 生成後は読み取り専用のため、複数のゴルーチンから同時に使用できる。
type Gate struct {
	secret    string
	scope     string
	loginPath string
	rules     []RouteRule
	logger    *log.Logger
}

// NewGate は設定を検証してGateを生成する。
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.Secret == "" {
		return nil, ErrSecretNotConfigured
	}

	g := &Gate{
		secret:    cfg.Secret,
		scope:     cfg.Scope,
		loginPath: cfg.LoginPath,
		logger:    cfg.Logger,
	}
	if g.scope == "" {
		g.scope = dashboardPrefix
	}
	if g.loginPath == "" {
		g.loginPath = defaultLoginPath
	}
	if g.logger == nil {
		g.logger = log.Default()
	}
	if !strings.HasPrefix(g.scope, "/") {
		return nil, fmt.Errorf("scopeは'/'で始まる必要があります: %q", g.scope)
	}

	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRouteRules()
	}
	g.rules = make([]RouteRule, 0, len(rules))
	for _, r := range rules {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("ルートの接頭辞は'/'で始まる必要があります: %q", r.Prefix)
		}
		if !r.Role.Valid() {
			return nil, fmt.Errorf("ルート %q: %w: %q", r.Prefix, ErrUnknownRole, r.Role)
		}
		r.Prefix = strings.TrimSuffix(r.Prefix, "/")
		g.rules = append(g.rules, r)
	}

	return g, nil
}

// Outcome はGateの判定結果の種類。
type Outcome int

const (
	// Proceed はリクエストをそのまま後続のハンドラに渡す。
	Proceed Outcome = iota
	// RedirectLogin はログインページにリダイレクトする。
	RedirectLogin
	// RedirectHome は呼び出し元ロールのダッシュボードにリダイレクトする。
	RedirectHome
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Decision は1リクエストに対するGateの判定。
type Decision struct {
	// Outcome は判定結果。
	Outcome Outcome
	// Location はリダイレクト先。Proceedの場合は空。
	Location string
	// Role はトークンから取り出したロール。トークンが有効な場合のみ設定される。
	Role Role
	// UserID はトークンから取り出したユーザーID。
	UserID string
	// Err は判定理由のエラー。ログ出力にのみ使用し、クライアントには返さない。
	Err error
}

// Decide はパスとトークンから判定を返す。I/Oを伴わない純粋な関数。
// hasTokenはCookieが存在したかどうかを表す。
func (g *Gate) Decide(path, token string, hasToken bool) Decision {
	if !pathHasPrefix(path, g.scope) {
		return Decision{Outcome: Proceed}
	}

	if !hasToken || token == "" {
		return Decision{Outcome: RedirectLogin, Location: g.loginPath, Err: ErrMissingToken}
	}

	claims, err := ParseToken(g.secret, token)
	if err != nil {
		return Decision{Outcome: RedirectLogin, Location: g.loginPath, Err: err}
	}

	d := Decision{Outcome: Proceed, Role: claims.Role, UserID: claims.UserID}
	if rule, ok := g.classify(path); ok && rule.Role != claims.Role {
		d.Outcome = RedirectHome
		d.Location = claims.Role.DashboardPath()
		d.Err = fmt.Errorf("%w: path=%s required=%s actual=%s", ErrRoleMismatch, path, rule.Role, claims.Role)
	}
	return d
}

// classify はパスに一致する最初のルールを返す。
func (g *Gate) classify(path string) (RouteRule, bool) {
	for _, r := range g.rules {
		if r.matches(path) {
			return r, true
		}
	}
	return RouteRule{}, false
}

// Handler はGateをGinミドルウェアとして返す。
// 通過時はコンテキストに "user_id" と "role" を設定する。
func (g *Gate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(TokenCookieName)
		hasToken := err == nil

		d := g.Decide(c.Request.URL.Path, token, hasToken)
		if d.Err != nil {
			g.logger.Printf("[Gate] %s %s: %s: %v", c.Request.Method, c.Request.URL.Path, d.Outcome, d.Err)
		}

		if d.Outcome != Proceed {
			c.Redirect(http.StatusTemporaryRedirect, d.Location)
			c.Abort()
			return
		}

		if d.Role != "" {
			c.Set(contextKeyUserID, d.UserID)
			c.Set(contextKeyRole, d.Role)
		}
		c.Next()
	}
}

// pathHasPrefix はpathがprefix自身か、prefixに続くパスセグメントであるかを返す。
func pathHasPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	rest, ok := strings.CutPrefix(path, prefix)
	return ok && (rest == "" || rest[0] == '/')
}
