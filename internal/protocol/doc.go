// Package protocol defines the wire envelope exchanged over the unified
// realtime connection.
//
// Every frame, inbound or outbound, is a single JSON object with a "type"
// discriminator. Topic-scoped frames (DATA, SUBSCRIBE, UNSUBSCRIBE) carry a
// topic; control frames (SYSTEM, ACKNOWLEDGMENT, ERROR, PING/PONG) may not.
// Legacy v68 contest frames are normalized into canonical envelopes at parse
// time so the rest of the system sees one shape.
package protocol
