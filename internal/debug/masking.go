// Copyright (c) 2024 OData MCP Contributors
// SPDX-License-Identifier: MIT

package debug

import (
	"log/slog"
	"net/url"
	"strings"
)

// Key fragments whose values are hidden entirely.
var passwordKeys = []string{"password", "passwd", "pwd", "secret"}

// Key fragments whose values keep a short tail for correlation.
var tokenKeys = []string{
	"token", "api_key", "apikey", "api-key", "authorization", "auth", "credential",
	"cookie", "csrf", "mysapsso2", "sap_sessionid", "saml",
}

// MaskPassword hides a password completely.
func MaskPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***"
}

// MaskToken keeps the last 8 characters of a token. Tokens of 8 characters
// or less are hidden completely.
func MaskToken(token string) string {
	switch {
	case token == "":
		return ""
	case len(token) <= 8:
		return "****"
	}
	return "****" + token[len(token)-8:]
}

// MaskURL removes the password and sensitive query parameters from a
// service URL. Unparseable input is returned unchanged.
func MaskURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if password, ok := parsed.User.Password(); ok {
		parsed.User = url.UserPassword(parsed.User.Username(), MaskPassword(password))
	}

	if parsed.RawQuery == "" {
		return parsed.String()
	}
	query := parsed.Query()
	masked := false
	for key := range query {
		if IsSensitiveKey(key) {
			query.Set(key, MaskPassword(query.Get(key)))
			masked = true
		}
	}
	if masked {
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

// MaskHeader masks the value of a sensitive request header. Authorization
// keeps its scheme and Cookie keeps the cookie names.
func MaskHeader(name, value string) string {
	if value == "" {
		return ""
	}
	switch {
	case strings.EqualFold(name, "Authorization"):
		if scheme, credential, ok := strings.Cut(value, " "); ok {
			return scheme + " " + MaskToken(credential)
		}
		return MaskToken(value)
	case strings.EqualFold(name, "Cookie"):
		return maskCookies(value)
	case IsSensitiveKey(name):
		return MaskToken(value)
	}
	return value
}

func maskCookies(header string) string {
	cookies := strings.Split(header, ";")
	for i, cookie := range cookies {
		name, value, ok := strings.Cut(strings.TrimSpace(cookie), "=")
		if !ok {
			cookies[i] = MaskToken(name)
			continue
		}
		cookies[i] = name + "=" + MaskToken(value)
	}
	return strings.Join(cookies, "; ")
}

// IsSensitiveKey reports whether values stored under key must be masked.
func IsSensitiveKey(key string) bool {
	return isPasswordKey(key) || containsAny(strings.ToLower(key), tokenKeys)
}

func isPasswordKey(key string) bool {
	return containsAny(strings.ToLower(key), passwordKeys)
}

func containsAny(s string, fragments []string) bool {
	for _, fragment := range fragments {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

// MaskAttr is a slog ReplaceAttr function. Password attributes are hidden,
// other sensitive attributes keep a token tail and URLs lose their
// credentials.
func MaskAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	value := a.Value.String()
	switch {
	case isPasswordKey(a.Key):
		return slog.String(a.Key, MaskPassword(value))
	case IsSensitiveKey(a.Key):
		return slog.String(a.Key, MaskToken(value))
	case strings.Contains(value, "://"):
		return slog.String(a.Key, MaskURL(value))
	}
	return a
}
