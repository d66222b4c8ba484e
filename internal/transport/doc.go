// Package transport owns the connection to the message-queue endpoint
// and routes reports to the network or file sink.
//
// Manager is a three-state machine: Disconnected until the first
// successful handshake, Connected while the periodic handshake probe
// keeps succeeding, and Reconnecting while a retry is in flight. The Run
// goroutine is the single reconnect authority; the delivery path only
// reads the state and demotes it when a publish fails.
//
// Deliver routes per state. While Connected it publishes over the queue,
// waiting a bounded time for an outbound slot; a saturated connection or
// a failed publish sends the report to the file sink instead. While
// Disconnected or Reconnecting it writes straight to the file sink so the
// pipeline never blocks on a known-dead connection. With no file sink
// configured the report is dropped with a logged error.
//
// The wire client is abstracted behind Publisher; the default
// implementation wraps an nsqio/go-nsq producer. Tests inject fakes the
// same way.
package transport
