// Package pagination drives token-ordered replication of Sherpa collections.
//
// Sherpa changed-data services do not page by offset or page number. Every
// item carries a Token, and a request with cursor T returns items whose
// tokens come after T. The driver fetches a page, emits its records,
// advances the cursor to the highest token on the page, persists that
// cursor, and repeats until a page comes back empty.
//
// Example usage:
//
//	driver, err := pagination.NewDriver(pagination.Config{
//		Collection:    "changed_stock",
//		Fetcher:       fetcher,
//		Store:         store,
//		ContainerPath: []string{"ResponseValue", "ItemStockToken"},
//	})
//	if err != nil {
//		return err
//	}
//	for record, err := range driver.Records(ctx) {
//		if err != nil {
//			return err
//		}
//		// process record
//	}
//
// The driver guarantees:
//   - the cursor never moves backwards, and only item tokens advance it
//   - an advancing page is persisted before the next fetch, so a crash
//     re-syncs at most one page
//   - a non-empty page that fails to advance the cursor stops the run
//     instead of looping forever
//   - cancellation is honored at page boundaries; a partially consumed
//     page is never persisted
//
// A Driver is not safe for concurrent use: run one Records traversal at a
// time. Distinct collections use distinct drivers and may run concurrently,
// they share nothing.
package pagination
