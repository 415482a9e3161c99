package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DRSN-tech/garment-search/internal/cfg"
	"github.com/DRSN-tech/garment-search/internal/domain"
	"github.com/DRSN-tech/garment-search/internal/repository/redis/converter"
	"github.com/DRSN-tech/garment-search/pkg/clients"
	"github.com/DRSN-tech/garment-search/pkg/e"
	"github.com/DRSN-tech/garment-search/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

const generationKey = "garment:catalog:generation"

// CacheRepo кэширует результаты поиска. Ключ включает поколение каталога,
// поэтому после записи новых эмбеддингов старые результаты перестают находиться и истекают по TTL.
type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.MatchConverter
	cfg    *cfg.RedisCfg
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, cfg *cfg.RedisCfg, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Generation возвращает текущее поколение каталога (0, если ключа ещё нет).
func (c *CacheRepo) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Client.Get(ctx, generationKey).Int64()
	if errors.Is(err, r.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, e.Wrap(whereami.WhereAmI(), err)
	}

	return gen, nil
}

// BumpGeneration инвалидирует все закэшированные результаты.
func (c *CacheRepo) BumpGeneration(ctx context.Context) error {
	if err := c.client.Client.Incr(ctx, generationKey).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetMatches возвращает закэшированный результат. Повреждённые записи удаляются и считаются промахом.
func (c *CacheRepo) GetMatches(ctx context.Context, generation int64, key string) ([]domain.Match, bool, error) {
	redisKey := SearchKey(generation, key)

	data, err := c.client.Client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, r.Nil) {
		return nil, false, nil // cache miss
	}
	if err != nil {
		return nil, false, e.Wrap(whereami.WhereAmI(), err)
	}

	var models []converter.MatchRedisModel
	if err := json.Unmarshal(data, &models); err != nil {
		c.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		c.drop(ctx, redisKey)
		return nil, false, nil
	}

	matches, err := c.conv.ToArrDomain(models)
	if err != nil {
		c.logger.Warnf("Redis cached match is corrupted: %v", e.Wrap(whereami.WhereAmI(), err))
		c.drop(ctx, redisKey)
		return nil, false, nil
	}

	return matches, true, nil
}

// SetMatches кэширует результат поиска с TTL из конфигурации.
func (c *CacheRepo) SetMatches(ctx context.Context, generation int64, key string, matches []domain.Match) error {
	data, err := json.Marshal(c.conv.ToArrRedisModel(matches))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := c.client.Client.Set(ctx, SearchKey(generation, key), data, c.cfg.ResultTTL).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func (c *CacheRepo) drop(ctx context.Context, key string) {
	if err := c.client.Client.Del(ctx, key).Err(); err != nil {
		c.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}
}

// SearchKey возвращает Redis-ключ результата поиска для хэша изображения.
func SearchKey(generation int64, imageHash string) string {
	return fmt.Sprintf("garment:search:%d:%s", generation, imageHash)
}
