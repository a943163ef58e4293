// Package integration contains the Integration bounded context.
// This context manages marketplace connections and order synchronization
// for the platforms the shop sells on (Etsy, eBay, Amazon, Shopify).
//
// Key concepts:
//   - MarketplaceClient: Port interface for fetching and normalizing orders from a platform
//   - Connection: Credentials and account identity for one marketplace account
//   - IdentityMapping: Entity linking a remote order or customer to its local record
//   - Cache: Port for the short-lived order list and mapping caches
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
