package riskapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ark-network/wabisabi/internal/core/ports"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	chunkSize = 100
	// Upper bound for a single request, regardless of the caller's context.
	requestTimeout = 90 * time.Second
)

var (
	ErrUnauthorized = errors.New("risk api: access forbidden")
	ErrInsecureUrl  = errors.New("risk api: url must use https")
)

type Config struct {
	Url    string
	ApiKey string
}

// apiResponse is the relevant part of the scoring report for an address.
type apiResponse struct {
	CscoreSection struct {
		CscoreInfo []struct {
			Id json.Number `json:"id"`
		} `json:"cscore_info"`
	} `json:"cscore_section"`
}

type service struct {
	baseUrl *url.URL
	apiKey  string
	client  *http.Client
}

func NewService(cfg Config) (ports.RiskScoringService, error) {
	baseUrl, err := url.Parse(cfg.Url)
	if err != nil {
		return nil, fmt.Errorf("invalid risk api url: %w", err)
	}
	if baseUrl.Scheme != "https" && !(baseUrl.Scheme == "http" && isLoopback(baseUrl)) {
		return nil, ErrInsecureUrl
	}
	if !strings.HasSuffix(baseUrl.Path, "/") {
		baseUrl.Path += "/"
	}

	return &service{
		baseUrl: baseUrl,
		apiKey:  cfg.ApiKey,
		client:  &http.Client{Timeout: requestTimeout},
	}, nil
}

func (s *service) CheckScripts(
	ctx context.Context, scripts [][]byte,
) (<-chan ports.ScriptCheckResult, error) {
	scripts = dedup(scripts)
	ch := make(chan ports.ScriptCheckResult, len(scripts))

	go func() {
		defer close(ch)

		for start := 0; start < len(scripts); start += chunkSize {
			end := min(start+chunkSize, len(scripts))

			eg := &errgroup.Group{}
			for _, script := range scripts[start:end] {
				script := script
				eg.Go(func() error {
					flags, err := s.check(ctx, script)
					ch <- ports.ScriptCheckResult{Script: script, Flags: flags, Err: err}
					// A single failure must not cancel the rest of the chunk.
					return nil
				})
			}
			// nolint
			eg.Wait()

			if ctx.Err() != nil {
				failRemaining(ch, scripts[end:], ctx.Err())
				return
			}
		}
	}()

	return ch, nil
}

func (s *service) check(ctx context.Context, script []byte) ([]string, error) {
	address, err := mainnetAddress(script)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, s.baseUrl.JoinPath(address).String(), nil,
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"risk api request failed with status %d: %s", resp.StatusCode, string(body),
		)
	}

	var res apiResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to parse response %s: %w", string(body), err)
	}

	flags := make([]string, 0, len(res.CscoreSection.CscoreInfo))
	for _, info := range res.CscoreSection.CscoreInfo {
		flags = append(flags, info.Id.String())
	}
	log.Debugf("risk api: %s flagged %v", address, flags)
	return flags, nil
}

// mainnetAddress encodes the script as a mainnet address, the only kind
// the scoring provider accepts.
func mainnetAddress(script []byte) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, &chaincfg.MainNetParams)
	if err != nil {
		return "", fmt.Errorf("failed to parse script %x: %w", script, err)
	}
	if len(addrs) != 1 {
		return "", fmt.Errorf("script %x has no single address", script)
	}
	return addrs[0].EncodeAddress(), nil
}

func failRemaining(ch chan<- ports.ScriptCheckResult, scripts [][]byte, err error) {
	for _, script := range scripts {
		ch <- ports.ScriptCheckResult{Script: script, Err: err}
	}
}

func dedup(scripts [][]byte) [][]byte {
	seen := make(map[string]struct{}, len(scripts))
	unique := make([][]byte, 0, len(scripts))
	for _, script := range scripts {
		key := hex.EncodeToString(script)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, script)
	}
	return unique
}

func isLoopback(u *url.URL) bool {
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
