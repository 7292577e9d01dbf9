package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// scopeSignatureAll — сигнатура неограниченного scope (весь ledger / весь каталог).
const scopeSignatureAll = "all"

// Scope описывает набор товаров-кандидатов, которым ограничена операция.
// Нулевое значение: неограниченный scope. Ограниченный пустой scope
// означает «ни одного кандидата» и даёт пустой результат.
type Scope struct {
	restricted bool
	ids        []string
	set        map[string]struct{}
}

// AllProducts возвращает неограниченный scope.
func AllProducts() Scope {
	return Scope{}
}

// RestrictTo строит ограниченный scope. Пустые id и повторы отбрасываются,
// порядок первых вхождений сохраняется.
func RestrictTo(ids ...string) Scope {
	s := Scope{
		restricted: true,
		ids:        make([]string, 0, len(ids)),
		set:        make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := s.set[id]; dup {
			continue
		}
		s.set[id] = struct{}{}
		s.ids = append(s.ids, id)
	}
	return s
}

// Restricted сообщает, ограничен ли scope набором товаров.
func (s Scope) Restricted() bool {
	return s.restricted
}

// Empty истинно только для ограниченного scope без кандидатов.
func (s Scope) Empty() bool {
	return s.restricted && len(s.ids) == 0
}

// IDs возвращает копию идентификаторов ограниченного scope (nil для неограниченного).
func (s Scope) IDs() []string {
	if !s.restricted {
		return nil
	}
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len возвращает число кандидатов ограниченного scope.
func (s Scope) Len() int {
	return len(s.ids)
}

// Contains проверяет принадлежность товара scope.
func (s Scope) Contains(productID string) bool {
	if !s.restricted {
		return true
	}
	_, ok := s.set[productID]
	return ok
}

// Signature — стабильный ключ scope для кэша: не зависит от порядка id.
func (s Scope) Signature() string {
	if !s.restricted {
		return scopeSignatureAll
	}
	sorted := s.IDs()
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:16])
}
