package middleware

// This in-memory cache is used for simplicity purpose. It can be replaced
// with Redis. golang-lru automatically evicts the least recently accessed
// entries, keeping memory use bounded.

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	lru "github.com/hashicorp/golang-lru"
)

type cachedResponse struct {
	contentType string
	body        []byte
}

// ResponseCache memoizes successful GET responses for explicit historical
// ranges. Span and current-value queries are anchored to "now" and must not
// be cached.
type ResponseCache struct {
	cache *lru.Cache
}

// NewResponseCache creates an LRU-backed response cache of the given size.
func NewResponseCache(size int) (*ResponseCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{cache: c}, nil
}

// Handler serves cached bodies on hit and stores 200 responses on miss.
func (rc *ResponseCache) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cacheable(c) {
			return c.Next()
		}

		key := c.Method() + ":" + c.OriginalURL()
		if v, ok := rc.cache.Get(key); ok {
			resp := v.(cachedResponse)
			c.Set(fiber.HeaderContentType, resp.contentType)
			return c.Status(fiber.StatusOK).Send(resp.body)
		}

		if err := c.Next(); err != nil {
			return err
		}

		if c.Response().StatusCode() == fiber.StatusOK {
			body := make([]byte, len(c.Response().Body()))
			copy(body, c.Response().Body())
			rc.cache.Add(key, cachedResponse{
				contentType: string(c.Response().Header.ContentType()),
				body:        body,
			})
		}
		return nil
	}
}

// Get exposes cache lookups for tests.
func (rc *ResponseCache) Get(key string) (interface{}, bool) {
	return rc.cache.Get(key)
}

func cacheable(c *fiber.Ctx) bool {
	// Only explicit [start, stop) ranges describe immutable past data.
	return c.Method() == fiber.MethodGet && strings.Contains(c.Path(), "/from/")
}
