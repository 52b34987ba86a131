// Package api is the HTTP dispatcher: it decodes and validates requests, hands them to the
// counter engine and encodes results in the JSON envelope clients of the service expect.
package api
