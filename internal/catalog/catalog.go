package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/cache"
	"github.com/Additional-Code/erpsync/internal/config"
	"github.com/Additional-Code/erpsync/internal/erp"
)

const keyPrefix = "erp:catalog:"

// Source lists the ERP lookup tables.
type Source interface {
	ListItems(ctx context.Context) ([]map[string]any, error)
	ListCurrencies(ctx context.Context) ([]map[string]any, error)
	ListSaleTypes(ctx context.Context) ([]map[string]any, error)
}

// Params defines dependencies for constructing Resolver through Fx.
type Params struct {
	fx.In

	Client *erp.Client
	Cache  cache.Store
	Config config.Config
	Logger *zap.Logger
}

// Module provides the catalog resolver to Fx.
var Module = fx.Provide(func(p Params) *Resolver {
	return NewResolver(p.Client, p.Cache, p.Config.Catalog.CacheTTL, p.Logger)
})

// Resolver maps local identifiers onto ERP lookup ids.
type Resolver struct {
	source Source
	cache  cache.Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewResolver builds a Resolver. A nil store or zero ttl disables caching.
func NewResolver(source Source, store cache.Store, ttl time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{source: source, cache: store, ttl: ttl, logger: logger}
}

// SaleTypeID returns the id of the first sale type, or nil when there is none.
func (r *Resolver) SaleTypeID(ctx context.Context) (*int64, error) {
	list, err := r.load(ctx, "sale_types", r.source.ListSaleTypes)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return positiveID(list[0]["id"]), nil
}

// CurrencyID returns the id of the currency whose code equals code, or nil.
func (r *Resolver) CurrencyID(ctx context.Context, code string) (*int64, error) {
	list, err := r.load(ctx, "currencies", r.source.ListCurrencies)
	if err != nil {
		return nil, err
	}
	for _, entry := range list {
		if c, ok := entry["code"].(string); ok && c == code {
			return positiveID(entry["id"]), nil
		}
	}
	return nil, nil
}

// Items returns an index over the ERP item catalog.
func (r *Resolver) Items(ctx context.Context) (*ItemIndex, error) {
	list, err := r.load(ctx, "items", r.source.ListItems)
	if err != nil {
		return &ItemIndex{}, err
	}
	return NewItemIndex(list), nil
}

// Invalidate drops all cached lookup lists.
func (r *Resolver) Invalidate(ctx context.Context) {
	if r.cache == nil {
		return
	}
	for _, name := range []string{"sale_types", "currencies", "items"} {
		if err := r.cache.Delete(ctx, keyPrefix+name); err != nil {
			r.logger.Warn("catalog cache delete failed", zap.String("list", name), zap.Error(err))
		}
	}
}

func (r *Resolver) load(ctx context.Context, name string, fetch func(context.Context) ([]map[string]any, error)) ([]map[string]any, error) {
	key := keyPrefix + name
	if r.cacheEnabled() {
		raw, err := r.cache.Get(ctx, key)
		switch {
		case err == nil:
			list, decodeErr := decodeList(raw)
			if decodeErr == nil {
				return list, nil
			}
			r.logger.Warn("catalog cache entry unreadable", zap.String("list", name), zap.Error(decodeErr))
		case !errors.Is(err, cache.ErrCacheMiss):
			r.logger.Warn("catalog cache read failed", zap.String("list", name), zap.Error(err))
		}
	}

	list, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if r.cacheEnabled() {
		if raw, err := json.Marshal(list); err == nil {
			if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
				r.logger.Warn("catalog cache write failed", zap.String("list", name), zap.Error(err))
			}
		}
	}
	return list, nil
}

func (r *Resolver) cacheEnabled() bool {
	return r.cache != nil && r.ttl > 0
}

func decodeList(raw []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var list []map[string]any
	if err := dec.Decode(&list); err != nil {
		return nil, err
	}
	return list, nil
}

func positiveID(v any) *int64 {
	id, ok := erp.AsInt64(v)
	if !ok || id <= 0 {
		return nil
	}
	return &id
}

// ItemIndex resolves local product identifiers to ERP item ids.
type ItemIndex struct {
	items []map[string]any
}

// NewItemIndex indexes a decoded item list.
func NewItemIndex(items []map[string]any) *ItemIndex {
	return &ItemIndex{items: items}
}

// Resolve matches identifier against item codes, then item ids. When nothing
// matches, the identifier itself is used as a number, or 0 if it is not numeric.
func (x *ItemIndex) Resolve(identifier string) int64 {
	identifier = strings.TrimSpace(identifier)
	for _, item := range x.items {
		if code, ok := erp.AsString(item["code"]); ok && code == identifier {
			if id, ok := erp.AsInt64(item["id"]); ok {
				return id
			}
		}
		if idText, ok := erp.AsString(item["id"]); ok && idText == identifier {
			if id, ok := erp.AsInt64(item["id"]); ok {
				return id
			}
		}
	}
	id, _ := erp.AsInt64(identifier)
	return id
}

// Len returns the number of catalog items.
func (x *ItemIndex) Len() int {
	return len(x.items)
}
