package portal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/campus/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testJWTSecret はテスト用のJWT署名秘密鍵。
const testJWTSecret = "test-secret-key"

// testPassword はテスト用ユーザー共通のパスワード。
const testPassword = "password123"

// newTestServer はインメモリSQLiteを使用するテスト用ポータルサーバーを生成する。
func newTestServer(t *testing.T) *Server {
	t.Helper()

	s, err := NewServer(Config{
		Port:        "0",
		JWTSecret:   testJWTSecret,
		TokenTTL:    time.Hour,
		FrontendURL: "http://localhost:3000",
	}, newTestStore(t))
	if err != nil {
		t.Fatalf("NewServer()でエラーが発生: %v", err)
	}
	return s
}

// tokenCookie はレスポンスからセッションCookieを取り出す。
func tokenCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.TokenCookieName {
			return c
		}
	}
	t.Fatal("レスポンスにtokenCookieが含まれていない")
	return nil
}

// login はJSONでログインし、レスポンスを返す。
func login(t *testing.T, s *Server, email, password string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		t.Fatalf("リクエストボディの生成に失敗: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// getWithToken はセッションCookieを付けてGETリクエストを送信する。
func getWithToken(s *Server, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: token})
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// TestNewServer はサーバー生成時の検証を確認する。
func TestNewServer(t *testing.T) {
	t.Parallel()

	t.Run("シークレットが空の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := NewServer(Config{}, newTestStore(t)); err == nil {
			t.Error("空のシークレットでエラーが返らなかった")
		}
	})
}

// TestHealth はヘルスチェックを検証する。
func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	w := getWithToken(s, "/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}
	var result map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v", err)
	}
	if result["service"] != "portal" {
		t.Errorf("service: got %q, want %q", result["service"], "portal")
	}
}

// TestHandleLogin はログインハンドラのテスト。
func TestHandleLogin(t *testing.T) {
	t.Parallel()

	t.Run("JSONで正しい認証情報を送るとCookieが設定され自分のダッシュボードにリダイレクトされる", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		u := seedUser(t, s.store, "teacher@example.edu", testPassword, middleware.RoleTeacher)

		w := login(t, s, "teacher@example.edu", testPassword)

		if w.Code != http.StatusSeeOther {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusSeeOther)
		}
		if got := w.Header().Get("Location"); got != "/dashboard/teacher" {
			t.Errorf("Location: got %q, want %q", got, "/dashboard/teacher")
		}

		c := tokenCookie(t, w)
		if !c.HttpOnly {
			t.Error("CookieにHttpOnlyが設定されていない")
		}
		if c.SameSite != http.SameSiteLaxMode {
			t.Errorf("SameSite: got %v, want %v", c.SameSite, http.SameSiteLaxMode)
		}
		if c.Path != "/" {
			t.Errorf("Path: got %q, want %q", c.Path, "/")
		}
		if c.MaxAge != 3600 {
			t.Errorf("MaxAge: got %d, want %d", c.MaxAge, 3600)
		}

		claims, err := middleware.ParseToken(testJWTSecret, c.Value)
		if err != nil {
			t.Fatalf("発行されたトークンの検証に失敗: %v", err)
		}
		if claims.UserID != u.ID || claims.Role != middleware.RoleTeacher {
			t.Errorf("claims: got (%q, %q), want (%q, %q)", claims.UserID, claims.Role, u.ID, middleware.RoleTeacher)
		}

		updated, err := s.store.GetUserByID(t.Context(), u.ID)
		if err != nil {
			t.Fatalf("GetUserByID()でエラーが発生: %v", err)
		}
		if !updated.LastLoginAt.Valid {
			t.Error("最終ログイン日時が更新されていない")
		}
	})

	t.Run("フォーム形式でもログインできる", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		seedUser(t, s.store, "clerk@example.edu", testPassword, middleware.RoleClerk)

		form := url.Values{"email": {"clerk@example.edu"}, "password": {testPassword}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusSeeOther {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusSeeOther)
		}
		if got := w.Header().Get("Location"); got != "/dashboard/clerk" {
			t.Errorf("Location: got %q, want %q", got, "/dashboard/clerk")
		}
	})

	t.Run("パスワードが誤っている場合は401が返りCookieは設定されない", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		seedUser(t, s.store, "admin@example.edu", testPassword, middleware.RoleAdmin)

		w := login(t, s, "admin@example.edu", "wrong-password")

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if len(w.Result().Cookies()) != 0 {
			t.Error("認証失敗時にCookieが設定された")
		}
	})

	t.Run("存在しないユーザーでも同じ401が返る", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		w := login(t, s, "nobody@example.edu", testPassword)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		var result map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if result["error"] != ErrInvalidCredentials.Error() {
			t.Errorf("error: got %q, want %q", result["error"], ErrInvalidCredentials.Error())
		}
	})

	t.Run("必須項目が無い場合は400が返る", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		w := login(t, s, "", "")

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleLoginForm はログインフォーム情報のハンドラのテスト。
func TestHandleLoginForm(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	w := getWithToken(s, "/login", "")

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"action":"/login"`) {
		t.Errorf("レスポンスにactionが含まれていない: %s", w.Body.String())
	}
}

// TestHandleLogout はログアウトハンドラのテスト。
func TestHandleLogout(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusSeeOther)
	}
	if got := w.Header().Get("Location"); got != "/login" {
		t.Errorf("Location: got %q, want %q", got, "/login")
	}
	c := tokenCookie(t, w)
	if c.Value != "" || c.MaxAge >= 0 {
		t.Errorf("Cookieが削除されていない: value=%q, MaxAge=%d", c.Value, c.MaxAge)
	}
}

// TestDashboard はGateで保護されたダッシュボードのテスト。
func TestDashboard(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	users := map[middleware.Role]User{}
	tokens := map[middleware.Role]string{}
	for _, role := range middleware.Roles() {
		email := string(role) + "@example.edu"
		users[role] = seedUser(t, s.store, email, testPassword, role)
		tokens[role] = tokenCookie(t, login(t, s, email, testPassword)).Value
	}

	tests := []struct {
		name         string
		path         string
		token        string
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "Cookie無しでadminダッシュボードにアクセスするとログインへ",
			path:         "/dashboard/admin",
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/login",
		},
		{
			name:         "teacherがadminダッシュボードにアクセスするとteacherダッシュボードへ",
			path:         "/dashboard/admin",
			token:        tokens[middleware.RoleTeacher],
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/dashboard/teacher",
		},
		{
			name:       "adminはadminダッシュボードに到達する",
			path:       "/dashboard/admin",
			token:      tokens[middleware.RoleAdmin],
			wantStatus: http.StatusOK,
		},
		{
			name:         "別シークレットで署名されたトークンはログインへ",
			path:         "/dashboard/clerk",
			token:        mustSign(t, "wrong-secret", users[middleware.RoleClerk].ID, middleware.RoleClerk),
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/login",
		},
		{
			name:         "clerkがteacherダッシュボードにアクセスするとclerkダッシュボードへ",
			path:         "/dashboard/teacher",
			token:        tokens[middleware.RoleClerk],
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/dashboard/clerk",
		},
		{
			name:       "studentはstudentダッシュボードに到達する",
			path:       "/dashboard/student",
			token:      tokens[middleware.RoleStudent],
			wantStatus: http.StatusOK,
		},
		{
			name:         "teacherがstudentダッシュボードにアクセスすると自分のダッシュボードへ",
			path:         "/dashboard/student",
			token:        tokens[middleware.RoleTeacher],
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/dashboard/teacher",
		},
		{
			name:       "未知のダッシュボードは404",
			path:       "/dashboard/library",
			token:      tokens[middleware.RoleStudent],
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "配下のページにも到達する",
			path:       "/dashboard/teacher/timetable",
			token:      tokens[middleware.RoleTeacher],
			wantStatus: http.StatusOK,
		},
		{
			name:         "削除済みユーザーのトークンはログインへ",
			path:         "/dashboard/admin",
			token:        mustSign(t, testJWTSecret, uuid.New().String(), middleware.RoleAdmin),
			wantStatus:   http.StatusTemporaryRedirect,
			wantLocation: "/login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := getWithToken(s, tt.path, tt.token)

			if w.Code != tt.wantStatus {
				t.Errorf("ステータスコード: got %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location: got %q, want %q", got, tt.wantLocation)
			}
		})
	}

	t.Run("ランディング情報にユーザー情報が含まれる", func(t *testing.T) {
		t.Parallel()

		w := getWithToken(s, "/dashboard/teacher/timetable", tokens[middleware.RoleTeacher])
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		var result map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		want := map[string]string{
			"role":         "teacher",
			"user_id":      users[middleware.RoleTeacher].ID,
			"display_name": "テスト teacher",
			"section":      "/timetable",
		}
		for k, v := range want {
			if result[k] != v {
				t.Errorf("%s: got %q, want %q", k, result[k], v)
			}
		}
	})
}

// mustSign は任意のシークレットでセッショントークンを生成する。
func mustSign(t *testing.T, secret, userID string, role middleware.Role) string {
	t.Helper()

	token, err := middleware.GenerateToken(secret, userID, role, time.Hour)
	if err != nil {
		t.Fatalf("テスト用トークン生成に失敗: %v", err)
	}
	return token
}
