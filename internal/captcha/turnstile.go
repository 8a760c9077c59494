package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
)

// ITurnstileVerifier verifies Cloudflare Turnstile challenges and issues the short-lived
// X-C-T token that lets a verified client skip the soft rate limit.
type ITurnstileVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
	GenerateHumanToken(userID, ip, fingerprint, spaSession string, ttl time.Duration) (string, error)
	ValidateHumanToken(tokenString, ip, fingerprint, spaSession string) bool
}

// ErrNotConfigured is returned in production when no Turnstile secret is set.
var ErrNotConfigured = errors.New("turnstile secret key not configured")

const humanTokenIssuer = "xkey-captcha"

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
	Action     string   `json:"action"`
}

type turnstileVerifier struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewTurnstileVerifier(cfg *config.Config) ITurnstileVerifier {
	return &turnstileVerifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Verify posts the challenge to siteverify. Without a secret, development
// environments pass every challenge and production fails closed.
func (v *turnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if v.cfg.CloudflareTurnstileSecretKey == "" {
		if v.cfg.IsProduction() {
			return false, ErrNotConfigured
		}
		log.Println("WARNING: Cloudflare Turnstile secret key not configured. Skipping verification.")
		return true, nil
	}

	form := url.Values{
		"secret":   {v.cfg.CloudflareTurnstileSecretKey},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.CloudflareSiteVerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to create turnstile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to contact turnstile service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return false, fmt.Errorf("failed to read turnstile response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("turnstile verification failed with status %d: %s", resp.StatusCode, body)
	}

	var out siteVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("failed to parse turnstile response: %w", err)
	}
	if !out.Success {
		log.Printf("Turnstile verification unsuccessful for %s. Error codes: %v", remoteIP, out.ErrorCodes)
	}
	return out.Success, nil
}

// HumanTokenClaims binds a passed challenge to the client that passed it.
type HumanTokenClaims struct {
	UserID      string `json:"uid,omitempty"`
	IP          string `json:"ip"`
	Fingerprint string `json:"bfp"`
	SPASession  string `json:"spa"`
	jwt.RegisteredClaims
}

func (v *turnstileVerifier) GenerateHumanToken(userID, ip, fingerprint, spaSession string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &HumanTokenClaims{
		UserID:      userID,
		IP:          ip,
		Fingerprint: fingerprint,
		SPASession:  spaSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    humanTokenIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.cfg.JwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign human token: %w", err)
	}
	return signed, nil
}

// ValidateHumanToken accepts the token only from the client it was issued to.
func (v *turnstileVerifier) ValidateHumanToken(tokenString, ip, fingerprint, spaSession string) bool {
	claims := &HumanTokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(v.cfg.JwtSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(humanTokenIssuer),
	)
	if err != nil {
		log.Printf("Invalid X-C-T token: %v", err)
		return false
	}
	if claims.IP != ip || claims.Fingerprint != fingerprint || claims.SPASession != spaSession {
		log.Printf("X-C-T token presented by a different client: IP(%s vs %s) BFP(%s vs %s)",
			claims.IP, ip, claims.Fingerprint, fingerprint)
		return false
	}
	return true
}
