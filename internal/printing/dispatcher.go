package printing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidTicket   = errors.New("invalid print ticket")
	ErrInvalidImageURL = errors.New("print image must be an http(s) or data:image URL")
)

// Config configures print tickets and the print page
type Config struct {
	Secret     string
	TTL        time.Duration
	PageWidth  string
	PageHeight string
	PublicURL  string
	RawBT      bool
}

// Job is a single print request carried by a ticket
type Job struct {
	ImageURL string
	Rotate   bool
	Ref      string
}

// Dispatcher issues print tickets that open the print view. Printing is fire
// and forget; nothing reports back whether a label actually came out.
type Dispatcher struct {
	cfg        Config
	httpClient *http.Client
}

const (
	rawBTFetchTimeout = 10 * time.Second
	maxRawBTBytes     = 10 << 20
)

// NewDispatcher creates a new print dispatcher
func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: rawBTFetchTimeout},
	}
}

// Ticket signs a short-lived print ticket
func (d *Dispatcher) Ticket(imageURL string, rotate bool, ref string) (string, error) {
	if !printableURL(imageURL) {
		return "", ErrInvalidImageURL
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"image_url": imageURL,
		"rotate":    rotate,
		"ref":       ref,
		"exp":       now.Add(d.cfg.TTL).Unix(),
		"iat":       now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(d.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign print ticket: %w", err)
	}
	return tokenString, nil
}

// ParseTicket validates a ticket and returns its job
func (d *Dispatcher) ParseTicket(tokenString string) (*Job, error) {
	if tokenString == "" {
		return nil, ErrInvalidTicket
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(d.cfg.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}
	if !token.Valid {
		return nil, ErrInvalidTicket
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidTicket
	}

	imageURL, ok := claims["image_url"].(string)
	if !ok || imageURL == "" {
		return nil, fmt.Errorf("%w: image_url not found", ErrInvalidTicket)
	}
	rotate, _ := claims["rotate"].(bool)
	ref, _ := claims["ref"].(string)

	return &Job{ImageURL: imageURL, Rotate: rotate, Ref: ref}, nil
}

func printableURL(s string) bool {
	return strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "data:image/")
}

// PrintURL returns the print view URL for a ticket
func (d *Dispatcher) PrintURL(ticket string) string {
	return d.cfg.PublicURL + "/print?ticket=" + url.QueryEscape(ticket)
}

// RawBTLink returns the RawBT link for a print image, or "" when RawBT is
// disabled. Hosted images are downloaded and base64 encoded.
func (d *Dispatcher) RawBTLink(ctx context.Context, imageURL string) (string, error) {
	if !d.cfg.RawBT {
		return "", nil
	}
	if strings.HasPrefix(imageURL, "data:image/") {
		return RawBTURL(imageURL), nil
	}
	if !printableURL(imageURL) {
		return "", ErrInvalidImageURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create print image request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch print image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch print image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRawBTBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read print image: %w", err)
	}
	return RawBTURL(base64.StdEncoding.EncodeToString(data)), nil
}

// RawBTURL builds the Bluetooth print app link for a base64 image.
// A data URL prefix is stripped.
func RawBTURL(b64 string) string {
	if _, payload, ok := strings.Cut(b64, ","); ok && strings.HasPrefix(b64, "data:") {
		b64 = payload
	}
	return "rawbt://image.base64," + b64
}
