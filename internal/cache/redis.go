package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	globalIndexSuffix  = "idx:global"
	productIndexPrefix = "idx:product:"
	globalGenSuffix    = "gen:global"
	productGenPrefix   = "gen:product:"
)

// invalidateScript атомарно удаляет все ключи, перечисленные в индексных
// множествах, сами индексы и увеличивает счётчики поколений.
// KEYS: ARGV[1] индексов, затем счётчики поколений.
var invalidateScript = redis.NewScript(`
local indexes = tonumber(ARGV[1])
local removed = 0
for i = 1, indexes do
	local members = redis.call('SMEMBERS', KEYS[i])
	for _, member in ipairs(members) do
		removed = removed + redis.call('DEL', member)
	end
	redis.call('DEL', KEYS[i])
end
for i = indexes + 1, #KEYS do
	redis.call('INCR', KEYS[i])
end
return removed
`)

// setScript записывает значение и индексы, только если сумма счётчиков
// поколений scope не изменилась. KEYS: значение, ARGV[4] счётчиков, индексы.
// ARGV: payload, ttl в мс (0 без срока), ожидаемое поколение, число счётчиков.
var setScript = redis.NewScript(`
local gens = tonumber(ARGV[4])
local current = 0
for i = 2, gens + 1 do
	current = current + tonumber(redis.call('GET', KEYS[i]) or '0')
end
if current ~= tonumber(ARGV[3]) then
	return 0
end
local ttl = tonumber(ARGV[2])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
for i = gens + 2, #KEYS do
	redis.call('SADD', KEYS[i], KEYS[1])
	if ttl > 0 then
		redis.call('PEXPIRE', KEYS[i], ttl)
	end
end
return 1
`)

// Redis — кэш ранжирований в Redis.
// Значение хранится JSON-массивом id, ключи индексируются множествами
// idx:global (неограниченный scope) и idx:product:<id>.
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedis создаёт кэш поверх клиента. namespace отделяет ключи сервисов друг от друга.
func NewRedis(client *redis.Client, namespace string) *Redis {
	if namespace == "" {
		namespace = "storefront"
	}
	return &Redis{client: client, namespace: namespace}
}

// Ping проверяет доступность Redis (используется health-check).
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get читает ранжирование; redis.Nil превращается в domain.ErrCacheMiss.
func (r *Redis) Get(ctx context.Context, key string) ([]string, error) {
	raw, err := r.client.Get(ctx, r.valueKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode cached ranking: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Generation суммирует счётчики поколений scope (отсутствующий счётчик равен 0).
func (r *Redis) Generation(ctx context.Context, scope domain.Scope) (int64, error) {
	keys := r.generationKeys(scope)
	if len(keys) == 0 {
		return 0, nil
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis generation: %w", err)
	}

	var gen int64
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("decode generation: %w", err)
		}
		gen += n
	}
	return gen, nil
}

// Set атомарно сверяет поколение и записывает значение вместе с индексами.
func (r *Redis) Set(ctx context.Context, key string, scope domain.Scope, ids []string, ttl time.Duration, generation int64) error {
	if ids == nil {
		ids = []string{}
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode ranking: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}

	gens := r.generationKeys(scope)
	keys := make([]string, 0, 1+len(gens)*2)
	keys = append(keys, r.valueKey(key))
	keys = append(keys, gens...)
	keys = append(keys, r.indexesFor(scope)...)

	stored, err := setScript.Run(ctx, r.client, keys, payload, ttl.Milliseconds(), generation, len(gens)).Int()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if stored == 0 {
		return domain.ErrStaleRanking
	}
	return nil
}

// InvalidateProducts удаляет записи, затронутые продажей указанных товаров.
func (r *Redis) InvalidateProducts(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, 2*(len(productIDs)+1))
	keys = append(keys, r.namespaced(globalIndexSuffix))
	for _, id := range productIDs {
		keys = append(keys, r.namespaced(productIndexPrefix+id))
	}
	indexes := len(keys)
	keys = append(keys, r.namespaced(globalGenSuffix))
	for _, id := range productIDs {
		keys = append(keys, r.namespaced(productGenPrefix+id))
	}

	if err := invalidateScript.Run(ctx, r.client, keys, indexes).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis invalidate: %w", err)
	}
	return nil
}

func (r *Redis) indexesFor(scope domain.Scope) []string {
	if !scope.Restricted() {
		return []string{r.namespaced(globalIndexSuffix)}
	}
	ids := scope.IDs()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.namespaced(productIndexPrefix+id))
	}
	return out
}

func (r *Redis) generationKeys(scope domain.Scope) []string {
	if !scope.Restricted() {
		return []string{r.namespaced(globalGenSuffix)}
	}
	ids := scope.IDs()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.namespaced(productGenPrefix+id))
	}
	return out
}

func (r *Redis) valueKey(key string) string {
	return r.namespaced(key)
}

func (r *Redis) namespaced(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}

var _ domain.RankingCache = (*Redis)(nil)
