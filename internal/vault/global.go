package vault

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/workshopops/workshop/internal/store"
)

// globalHandler writes one global table. rows is never empty.
type globalHandler func(e *Engine, ctx context.Context, w Writer, table store.Table, rows []store.Row) error

// dumpTo returns a handler that extracts blobs next to path and writes the
// rows as one JSON array at path.
func dumpTo(path string) globalHandler {
	return func(_ *Engine, ctx context.Context, w Writer, _ store.Table, rows []store.Row) error {
		folder := path[:strings.LastIndexByte(path, '/')]
		out, err := ExtractBlobs(ctx, w, rows, folder)
		if err != nil {
			return err
		}
		return WriteJSON(ctx, w, path, out)
	}
}

var globalHandlers = map[store.Table]globalHandler{
	store.InventoryItems:  dumpTo("Inventory/items.json"),
	store.InboxItems:      dumpTo("Inbox/inbox.json"),
	store.GlobalNotes:     dumpTo("Notes/global_notes.json"),
	store.Reminders:       dumpTo("Global/reminders.json"),
	store.Templates:       dumpTo("Global/templates.json"),
	store.Goals:           dumpTo("Global/goals.json"),
	store.SystemConfig:    (*Engine).writeSystemConfig,
	store.Logs:            dumpTo("System/logs.json"),
	store.PartCache:       dumpTo("System/part_cache.json"),
	store.Assets:          dumpTo("Assets/assets.json"),
	store.Songs:           (*Engine).writeSongs,
	store.Albums:          (*Engine).writeAlbums,
	store.LLMInstructions: (*Engine).writeInstructions,
}

// globalTables returns the known global tables in declaration order followed
// by any unknown tables present in the store, sorted by name.
func (e *Engine) globalTables(ctx context.Context) ([]store.Table, error) {
	var tables []store.Table
	for _, d := range store.Known() {
		if d.Scope == store.ScopeGlobal {
			tables = append(tables, d.Name)
		}
	}

	present, err := e.tables.Tables(ctx)
	if err != nil {
		return tables, err
	}
	var unknown []store.Table
	for _, t := range present {
		if store.Describe(t).Scope == store.ScopeUnknown {
			unknown = append(unknown, t)
		}
	}
	slices.Sort(unknown)
	return append(tables, unknown...), nil
}

// syncGlobals writes every non-empty global table plus the local settings.
// Each table fails on its own.
func (e *Engine) syncGlobals(ctx context.Context, w Writer, res *Result) {
	tables, err := e.globalTables(ctx)
	if err != nil {
		e.logger.Printf("WARNING: Failed to list tables, unknown tables skipped: %v", err)
		res.fail("tables", err)
	}

	purchasingDone := false
	for _, table := range tables {
		// purchase_items and vendors share one file
		if table == store.PurchaseItems || table == store.Vendors {
			if purchasingDone {
				continue
			}
			purchasingDone = true
			if err := e.writePurchasing(ctx, w); err != nil {
				e.logger.Printf("WARNING: Failed to sync purchasing: %v", err)
				res.fail("purchasing", err)
			}
			continue
		}

		rows, err := e.tables.All(ctx, table)
		if err != nil {
			e.logger.Printf("WARNING: Failed to read %s: %v", table, err)
			res.fail(string(table), err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		handler, ok := globalHandlers[table]
		if !ok {
			handler = dumpTo("Global/" + Sanitize(string(table)) + ".json")
		}
		if err := handler(e, ctx, w, table, rows); err != nil {
			e.logger.Printf("WARNING: Failed to sync %s: %v", table, err)
			res.fail(string(table), err)
		}
	}

	if err := e.writeLocalSettings(ctx, w); err != nil {
		e.logger.Printf("WARNING: Failed to sync local settings: %v", err)
		res.fail("local settings", err)
	}
}

// writePurchasing writes Global/purchasing.json as {items, vendors}.
func (e *Engine) writePurchasing(ctx context.Context, w Writer) error {
	items, err := e.tables.All(ctx, store.PurchaseItems)
	if err != nil {
		return fmt.Errorf("read %s: %w", store.PurchaseItems, err)
	}
	vendors, err := e.tables.All(ctx, store.Vendors)
	if err != nil {
		return fmt.Errorf("read %s: %w", store.Vendors, err)
	}
	if len(items) == 0 && len(vendors) == 0 {
		return nil
	}

	outItems, err := ExtractBlobs(ctx, w, items, "Global/purchasing")
	if err != nil {
		return err
	}
	outVendors, err := ExtractBlobs(ctx, w, vendors, "Global/vendors")
	if err != nil {
		return err
	}
	return WriteJSON(ctx, w, "Global/purchasing.json", map[string]any{
		"items":   outItems,
		"vendors": outVendors,
	})
}

// writeSystemConfig writes System/config.json without the vault handle
// entry.
func (e *Engine) writeSystemConfig(ctx context.Context, w Writer, _ store.Table, rows []store.Row) error {
	kept := make([]store.Row, 0, len(rows))
	for _, row := range rows {
		if row.String("key") == VaultHandleKey {
			continue
		}
		kept = append(kept, row)
	}
	if len(kept) == 0 {
		return nil
	}
	return dumpTo("System/config.json")(e, ctx, w, store.SystemConfig, kept)
}

// writeLocalSettings writes the pref.* settings as a flat string map with the
// prefix removed. Nothing is written when there are none.
func (e *Engine) writeLocalSettings(ctx context.Context, w Writer) error {
	if e.settings == nil {
		return nil
	}
	prefs, err := e.settings.SettingsWithPrefix(ctx, store.PrefPrefix)
	if err != nil {
		return err
	}
	if len(prefs) == 0 {
		return nil
	}
	out := make(map[string]string, len(prefs))
	for k, v := range prefs {
		out[strings.TrimPrefix(k, store.PrefPrefix)] = v
	}
	return WriteJSON(ctx, w, "System/local_settings.json", out)
}
