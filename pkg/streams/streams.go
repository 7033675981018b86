// Package streams is the registry of Sherpa collections this module can
// replicate. Each Definition names the SOAP operation behind a collection,
// where its items live in the decoded response, how its requests are
// parameterized, and which child collection its records fan out to.
//
// Paginated collections are driven by pagination.Driver; detail collections
// (IsDetail) are fetched per key through pagination.DetailDriver, fed by a
// parent's fan-out edge.
package streams

import (
	"github.com/XAbade/tap-sherpaan/pkg/client"
	"github.com/XAbade/tap-sherpaan/pkg/normalize"
	"github.com/XAbade/tap-sherpaan/pkg/pagination"
	"github.com/XAbade/tap-sherpaan/pkg/state"
)

// FanOut is an edge from a parent collection to a detail collection. Each
// distinct KeyField value seen during a parent run triggers one child fetch.
type FanOut struct {
	// Child names the detail collection to fetch.
	Child string

	// KeyField is the record field whose value keys the child fetch.
	KeyField string
}

// Definition describes one collection.
type Definition struct {
	// Name identifies the collection in bookmarks and record output.
	Name string

	// Service is the SOAP operation backing the collection.
	Service string

	// ContainerPath locates the item container inside the decoded result.
	ContainerPath []string

	// PageSizeParam names the page-size request parameter. Empty for
	// detail collections.
	PageSizeParam string

	// KeyParam names the lookup request parameter of a detail collection.
	KeyParam string

	// ListParams are fixed list-valued request parameters, rendered after
	// the token and page size.
	ListParams []client.Param

	// Unwrap lifts the named wrapper's fields into each record during
	// normalization.
	Unwrap string

	// Filter drops records after normalization. Dropped records still
	// advance the cursor.
	Filter func(normalize.Record) bool

	// FanOut feeds a detail collection from this one's records.
	FanOut *FanOut
}

// IsDetail reports whether the collection is fetched per key instead of
// paginated.
func (d Definition) IsDetail() bool {
	return d.KeyParam != ""
}

// DriverConfig assembles the pagination configuration for a paginated
// collection, wired to c and store. PageSize, Retry, OnFanOut and Logger are
// left for the caller.
func (d Definition) DriverConfig(c *client.Client, store state.Store) pagination.Config {
	cfg := pagination.Config{
		Collection:    d.Name,
		Fetcher:       NewFetcher(c, d),
		Store:         store,
		ContainerPath: d.ContainerPath,
		Unwrap:        d.Unwrap,
		Filter:        d.Filter,
	}
	if d.FanOut != nil {
		field := d.FanOut.KeyField
		cfg.FanOutKey = func(rec normalize.Record) (string, bool) {
			key, ok := rec[field].(string)
			return key, ok && key != ""
		}
	}
	return cfg
}

// DetailDriverConfig assembles the detail configuration for a detail
// collection, wired to c. Retry and Logger are left for the caller.
func (d Definition) DetailDriverConfig(c *client.Client) pagination.DetailConfig {
	return pagination.DetailConfig{
		Collection:    d.Name,
		Fetcher:       NewDetailFetcher(c, d),
		ContainerPath: d.ContainerPath,
		Unwrap:        d.Unwrap,
	}
}

var definitions = []Definition{
	{
		Name:          "changed_items_information",
		Service:       "ChangedItemsInformation",
		ContainerPath: []string{"ResponseValue", "ItemCodeTokenItemInformation"},
		PageSizeParam: "count",
		ListParams: []client.Param{
			client.ListOf("itemInformationTypes", "ItemInformationType",
				"General", "EanCode", "CustomFields", "Warehouses",
				"ItemSuppliers", "ItemAssemblies", "ItemPurchases"),
		},
		Unwrap: "ItemInformation",
	},
	{
		Name:          "changed_stock",
		Service:       "ChangedStock",
		ContainerPath: []string{"ResponseValue", "ItemStockToken"},
		PageSizeParam: "maxResult",
	},
	{
		Name:          "changed_suppliers",
		Service:       "ChangedSuppliers",
		ContainerPath: []string{"ResponseValue", "ClientCodeToken"},
		PageSizeParam: "count",
		FanOut:        &FanOut{Child: "supplier_info", KeyField: "ClientCode"},
	},
	{
		Name:          "supplier_info",
		Service:       "SupplierInfo",
		ContainerPath: []string{"ResponseValue"},
		KeyParam:      "supplierCode",
	},
	{
		Name:          "changed_item_suppliers_with_defaults",
		Service:       "ChangedItemSuppliersWithDefaults",
		ContainerPath: []string{"ResponseValue", "SupplierItemCodeToken"},
		PageSizeParam: "count",
	},
	{
		Name:          "changed_orders_information",
		Service:       "ChangedOrdersInformation",
		ContainerPath: []string{"ResponseValue", "OrderNumberTokenOrderInformation"},
		PageSizeParam: "count",
		ListParams: []client.Param{
			client.ListOf("orderInformationTypes", "OrderInformationType",
				"General", "OrderLines"),
		},
	},
	{
		Name:          "changed_purchases",
		Service:       "ChangedPurchases",
		ContainerPath: []string{"ResponseValue", "PurchaseCodeToken"},
		PageSizeParam: "count",
		Filter:        hasOrderNumber,
		FanOut:        &FanOut{Child: "purchase_info", KeyField: "OrderNumber"},
	},
	{
		Name:          "purchase_info",
		Service:       "PurchaseInfo",
		ContainerPath: []string{"ResponseValue"},
		KeyParam:      "purchaseNumber",
	},
}

// All returns every collection definition in registry order.
func All() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Get returns the definition named name.
func Get(name string) (Definition, bool) {
	for _, d := range definitions {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Names returns every collection name in registry order.
func Names() []string {
	names := make([]string, len(definitions))
	for i, d := range definitions {
		names[i] = d.Name
	}
	return names
}

// Purchases without an order number carry no usable data downstream.
func hasOrderNumber(rec normalize.Record) bool {
	v, ok := rec["OrderNumber"]
	if !ok {
		return false
	}
	s, isString := v.(string)
	return !isString || s != ""
}
