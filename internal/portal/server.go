package portal

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/campus/pkg/middleware"
)

// Server はポータルサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はユーザー情報のストア。
	store *Store
	// gate は /dashboard 配下のアクセス判定を行う。
	gate *middleware.Gate
	// jwtSecret はセッショントークン署名用の秘密鍵。
	jwtSecret string
	// tokenTTL はセッショントークンの有効期間。
	tokenTTL time.Duration
	// cookieSecure はセッションCookieにSecure属性を付けるかどうか。
	cookieSecure bool
}

// NewServer は設定と開いたストアから新しいポータルサーバーを生成する。
func NewServer(cfg Config, store *Store) (*Server, error) {
	gate, err := middleware.NewGate(middleware.GateConfig{Secret: cfg.JWTSecret})
	if err != nil {
		return nil, fmt.Errorf("gateの初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router:       router,
		port:         cfg.Port,
		store:        store,
		gate:         gate,
		jwtSecret:    cfg.JWTSecret,
		tokenTTL:     cfg.TokenTTL,
		cookieSecure: cfg.CookieSecure,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Handler はルーターをhttp.Handlerとして返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はルーティングを設定する。
func (s *Server) setupRoutes() {
	// ログイン・ログアウト（認証不要）
	s.router.GET("/login", s.handleLoginForm())
	s.router.POST("/login", s.handleLogin())
	s.router.POST("/logout", s.handleLogout())

	// ロール別ダッシュボード（Gateで保護）
	dashboard := s.router.Group("/dashboard")
	dashboard.Use(s.gate.Handler())
	{
		dashboard.GET("/:role", s.handleDashboard())
		dashboard.GET("/:role/*section", s.handleDashboard())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "portal"})
	})
}

// loginRequest はログインフォームの入力。
type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// handleLoginForm はログインフォームの項目を返すハンドラを返す。
// 画面の描画はフロントエンドが担当する。
func (s *Server) handleLoginForm() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"action": "/login",
			"method": http.MethodPost,
			"fields": []string{"email", "password"},
		})
	}
}

// handleLogin は認証情報を検証し、セッショントークンをCookieに設定するハンドラを返す。
// 成功時は303で自分のダッシュボードにリダイレクトする。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "メールアドレスとパスワードは必須です"})
			return
		}

		user, err := s.store.Authenticate(c.Request.Context(), req.Email, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ログイン処理に失敗しました"})
			log.Printf("[Portal] ログインエラー: %v", err)
			return
		}

		token, err := middleware.GenerateToken(s.jwtSecret, user.ID, user.Role, s.tokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			log.Printf("[Portal] トークン生成エラー: %v", err)
			return
		}

		if err := s.store.UpdateLastLogin(c.Request.Context(), user.ID); err != nil {
			log.Printf("[Portal] 最終ログイン日時の更新に失敗: user_id=%s, error=%v", user.ID, err)
		}

		s.setTokenCookie(c, token, int(s.tokenTTL.Seconds()))
		c.Redirect(http.StatusSeeOther, user.Role.DashboardPath())
	}
}

// handleLogout はセッションCookieを削除してログインページにリダイレクトするハンドラを返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.setTokenCookie(c, "", -1)
		c.Redirect(http.StatusSeeOther, "/login")
	}
}

// setTokenCookie はセッショントークンのCookieを設定する。maxAgeが負の場合は削除する。
func (s *Server) setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookieName, token, maxAge, "/", "", s.cookieSecure, true)
}

// handleDashboard はロール別ダッシュボードのランディング情報を返すハンドラを返す。
// Gateを通過したリクエストのみ到達する。
func (s *Server) handleDashboard() gin.HandlerFunc {
	return func(c *gin.Context) {
		requested, err := middleware.ParseRole(c.Param("role"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "ダッシュボードが見つかりません"})
			return
		}

		role, ok := middleware.GetRole(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ロールが取得できません"})
			return
		}
		if requested != role {
			// 制限の無いダッシュボードでも他ロールの画面は表示しない
			c.Redirect(http.StatusTemporaryRedirect, role.DashboardPath())
			return
		}

		user, err := s.store.GetUserByID(c.Request.Context(), middleware.GetUserID(c))
		if errors.Is(err, ErrUserNotFound) {
			// トークン発行後にユーザーが削除された
			s.setTokenCookie(c, "", -1)
			c.Redirect(http.StatusTemporaryRedirect, "/login")
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			log.Printf("[Portal] ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"role":         role,
			"user_id":      user.ID,
			"display_name": user.DisplayName,
			"section":      c.Param("section"),
		})
	}
}
