package api

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// isValidUserAssetObjectKey 校验对象键属于给定账号且形状合法，
// 防止越权读取与路径穿越。
func isValidUserAssetObjectKey(accountID uint, key string) bool {
	if key == "" || !utf8.ValidString(key) {
		return false
	}
	expected := fmt.Sprintf("user-assets/%d/", accountID)
	if !strings.HasPrefix(key, expected) {
		return false
	}
	if strings.Contains(key, "..") || strings.Contains(key, "\\") || strings.Contains(key, "//") {
		return false
	}
	if len(key) > 200 {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(key))
	if !(strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg")) {
		return false
	}
	return true
}
