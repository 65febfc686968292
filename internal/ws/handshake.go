package ws

import (
	"net/http"
	"net/url"
	"strings"

	"chat_backend/pkg/logger"
)

// AccessTokenProtocol - подпротокол, в котором браузер передает токен
const AccessTokenProtocol = "access_token"

// ExtractToken достает токен из запроса рукопожатия.
// Порядок: заголовок Authorization, затем Sec-WebSocket-Protocol
// вида "access_token, <token>", затем параметр запроса token.
func ExtractToken(r *http.Request) string {
	// заголовок без схемы Bearer не считается токеном
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}

	for _, header := range r.Header.Values("Sec-WebSocket-Protocol") {
		parts := strings.Split(header, ",")
		for i := 0; i+1 < len(parts); i++ {
			if strings.TrimSpace(parts[i]) == AccessTokenProtocol {
				return strings.TrimSpace(parts[i+1])
			}
		}
	}

	return r.URL.Query().Get("token")
}

// originChecker разрешает запросы без Origin (не браузерные клиенты)
// и браузерные запросы с разрешенных источников
func originChecker(allowed []string, log logger.Logger) func(r *http.Request) bool {
	origins, allowAll := normalizeOrigins(allowed, log)
	return func(r *http.Request) bool {
		header := r.Header.Get("Origin")
		if header == "" || allowAll {
			return true
		}
		origin, ok := normalizeOrigin(header)
		if ok {
			if _, exists := origins[origin]; exists {
				return true
			}
		}
		log.Warn("Blocked WebSocket connection from disallowed origin", "origin", header)
		return false
	}
}

func normalizeOrigins(origins []string, log logger.Logger) (map[string]struct{}, bool) {
	normalized := make(map[string]struct{}, len(origins))
	allowAll := false
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		switch {
		case trimmed == "":
			continue
		case trimmed == "*":
			allowAll = true
			continue
		}
		o, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn("Ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		normalized[o] = struct{}{}
	}
	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
