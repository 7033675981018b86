package streams

import (
	"context"
	"strconv"

	"github.com/XAbade/tap-sherpaan/pkg/client"
)

// Fetcher adapts the SOAP client to pagination.Fetcher for one paginated
// collection.
type Fetcher struct {
	client *client.Client
	def    Definition
}

// NewFetcher creates a page fetcher for def.
func NewFetcher(c *client.Client, def Definition) *Fetcher {
	return &Fetcher{client: c, def: def}
}

// FetchPage requests the page of items after cursor.
func (f *Fetcher) FetchPage(ctx context.Context, cursor int64, pageSize int) (map[string]any, error) {
	params := make([]client.Param, 0, len(f.def.ListParams)+2)
	params = append(params, client.Scalar("token", strconv.FormatInt(cursor, 10)))
	if f.def.PageSizeParam != "" {
		params = append(params, client.Scalar(f.def.PageSizeParam, strconv.Itoa(pageSize)))
	}
	params = append(params, f.def.ListParams...)

	return f.client.Call(ctx, client.Request{Service: f.def.Service, Params: params})
}

// DetailFetcher adapts the SOAP client to pagination.DetailFetcher for one
// detail collection. Detail requests carry the lookup key and no token.
type DetailFetcher struct {
	client *client.Client
	def    Definition
}

// NewDetailFetcher creates a detail fetcher for def.
func NewDetailFetcher(c *client.Client, def Definition) *DetailFetcher {
	return &DetailFetcher{client: c, def: def}
}

// FetchDetail requests the detail payload for key.
func (f *DetailFetcher) FetchDetail(ctx context.Context, key string) (map[string]any, error) {
	return f.client.Call(ctx, client.Request{
		Service: f.def.Service,
		Params:  []client.Param{client.Scalar(f.def.KeyParam, key)},
	})
}
