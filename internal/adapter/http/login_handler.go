package http

import (
	"net/http"
	"time"

	"github.com/Wilyos/sistemas-box/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

type TokenHandler struct {
	cfg     TokenConfig
	clients security.Clients
	now     func() time.Time
}

func NewTokenHandler(cfg TokenConfig, clients security.Clients) *TokenHandler {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &TokenHandler{cfg: cfg, clients: clients, now: time.Now}
}

type tokenReq struct {
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
}

// POST /v1/token (form or JSON)
// Accepts: client_id, client_secret
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBind(&req); err != nil || req.ClientID == "" || req.ClientSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	cl, ok := h.clients.Authenticate(req.ClientID, req.ClientSecret)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	now := h.now()
	claims := jwt.MapClaims{
		"iss":      h.cfg.Issuer,
		"aud":      h.cfg.Audience,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      now.Add(h.cfg.TTL).Unix(),
		"clientID": cl.ID,
		"perms":    cl.Perms,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.Secret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int64(h.cfg.TTL / time.Second),
	})
}
