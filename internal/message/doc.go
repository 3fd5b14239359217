// Package message defines the envelope that crosses the bridge boundary and
// the tagged payload variant carried inside it. Payloads are captured as
// either parsed structured data or the original raw string, never dropped.
package message
