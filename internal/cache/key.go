package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const keyPrefix = "ranking"

// Key строит ключ кэша ранжирования: операция, сигнатура scope, topN и параметры фильтра.
// Параметры хешируются, чтобы ключевые слова с разделителями не давали коллизий.
func Key(operation string, scope domain.Scope, topN int, params ...string) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteByte(':')
	b.WriteString(operation)
	b.WriteByte(':')
	b.WriteString(scope.Signature())
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(topN))
	if len(params) > 0 {
		sum := sha256.Sum256([]byte(strings.Join(params, "\x00")))
		b.WriteByte(':')
		b.WriteString(hex.EncodeToString(sum[:8]))
	}
	return b.String()
}
