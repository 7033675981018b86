// Package normalize converts raw decoded Sherpa payloads into flat,
// storage-ready records.
//
// The XML decoder produces deeply nested maps polluted with attribute keys
// ("@xmlns", "@xsi:nil", ...). Normalization flattens one raw item into a
// Record in three steps:
//
//   - Attribute keys are stripped at every nesting level.
//   - Empty maps, empty sequences, and nil values collapse to absent.
//   - Remaining nested maps and sequences are serialized to canonical JSON
//     strings, so a composite field survives as a single opaque column.
//
// Scalar values pass through unchanged. Some services double-wrap the item
// fields (ChangedItemsInformation nests them under "ItemInformation");
// Options.UnwrapKey lifts the inner mapping to the top level first. The
// unwrap key is per-collection configuration, never guessed from the data.
//
// # Basic Usage
//
//	rec, err := normalize.Normalize(item, normalize.Options{
//		UnwrapKey: "ItemInformation",
//	})
//	if err != nil {
//		return err
//	}
//	fmt.Println(rec["ItemCode"], rec["EanCode"]) // scalar, JSON string
//
// Normalize is pure: it never mutates its input and is idempotent on
// already-flat records. For any acyclic composite v,
// DecodeComposite(EncodeComposite(clean(v))) equals clean(v), where clean is
// the attribute-strip / empty-collapse rule exposed as Clean.
package normalize
