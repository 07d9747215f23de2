package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"preorder/internal/config"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	CtxOperatorKey = "operator" // string

	HeaderAdminToken = "X-Admin-Token"

	actorToken = "token"
)

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// OperatorCredentials は運営者かどうかの判定だけを行う（セッションは持たない）
type OperatorCredentials struct {
	token        string
	user         string
	password     string
	passwordHash []byte
}

func NewOperatorCredentials(cfg config.OperatorConfig) OperatorCredentials {
	c := OperatorCredentials{
		token:    cfg.Token,
		user:     cfg.User,
		password: cfg.Password,
	}
	if cfg.PasswordHash != "" {
		c.passwordHash = []byte(cfg.PasswordHash)
	}
	return c
}

// Authorize は運営者なら操作者名（"token" かユーザー名）を返す。
// 設定値が空のものは一致させない。
func (c OperatorCredentials) Authorize(r *http.Request) (string, bool) {
	if tok := presentedToken(r); tok != "" && c.token != "" {
		if subtle.ConstantTimeCompare([]byte(tok), []byte(c.token)) == 1 {
			return actorToken, true
		}
	}

	user, pass, ok := r.BasicAuth()
	if !ok || c.user == "" || user == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(c.user)) != 1 {
		return "", false
	}
	if c.passwordHash != nil {
		if bcrypt.CompareHashAndPassword(c.passwordHash, []byte(pass)) != nil {
			return "", false
		}
		return user, true
	}
	if c.password == "" || subtle.ConstantTimeCompare([]byte(pass), []byte(c.password)) != 1 {
		return "", false
	}
	return user, true
}

// X-Admin-Token か Authorization: Bearer のトークン
func presentedToken(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(HeaderAdminToken)); tok != "" {
		return tok
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// 運営者だけ通す。失敗理由は区別せず401。
func OperatorAuth(creds OperatorCredentials) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := creds.Authorize(c.Request())
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			c.Set(CtxOperatorKey, actor)
			return next(c)
		}
	}
}

func OperatorFromContext(c echo.Context) (string, bool) {
	actor, ok := c.Get(CtxOperatorKey).(string)
	return actor, ok && actor != ""
}
