// Package events defines the allocation events emitted on the event bus.
//
// Available event types:
//   - RequestSubmitted, RequestRejected, RequestCancelled: request intake
//   - QueueAnnounced, QueueActivated, QueueClosed: announced queue lifecycle
//   - RequestFilled, RequestsRequeued: fulfilment outcomes
//   - StockChanged: any change of a station's stock record
package events
