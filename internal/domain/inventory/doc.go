// Package inventory holds the rental desk's core model: the registry of
// lendable items and the ledger of who holds what.
//
// The package defines:
//
//   - Entities: Item, RentalRecord, Borrower, ActiveRental
//   - Value objects: Category, ItemFields, ItemFilter
//   - Ports implemented in infrastructure: ItemRepository, RentalRepository,
//     Store, ItemLocker, BorrowerDirectory
//   - Services: Registry (item CRUD) and Ledger (checkout / return)
//
// # Availability
//
// An item's IsAvailable flag is owned by the Ledger. Registry.Update cannot
// touch it and Registry.Delete refuses items that are out on loan. The only
// writer is the unexported Registry.setAvailability, which the Ledger calls
// inside the same transaction that opens or closes a RentalRecord:
//
//	IsAvailable == false  <=>  exactly one RentalRecord with ReturnedAt == nil
//
// # Concurrency
//
// Every state change on an item runs under that item's ItemLocker key and
// inside Store.WithinTx, reading the item with GetForUpdate first. Two
// concurrent checkouts of the same item therefore serialize: one wins and the
// other sees the item unavailable.
//
// # Example
//
//	store := memory.NewStore()
//	registry := inventory.NewRegistry(store, nil)
//	ledger := inventory.NewLedger(registry, period.DefaultClock(), nil)
//
//	item, _ := registry.Create(ctx, inventory.NewItem{Name: "Anker 10000", Category: inventory.CategoryPowerBank})
//	rec, err := ledger.Checkout(ctx, inventory.CheckoutRequest{
//	    ItemID:      item.ID,
//	    BorrowerID:  "student-42",
//	    DeliveredBy: "desk-kim",
//	}, time.Now())
package inventory
