// Package client is a Go client for the sonicweb HTTP API.
//
//	c, _ := client.New(client.WithBaseURL("http://localhost:8080"), client.WithAPIKey(key))
//	_ = c.Ingest(ctx, "Red Iphone")
//	values, _ := c.Search(ctx, "iphone")
//
// Errors returned by the server are *APIError values and match the package
// sentinels with errors.Is:
//
//	if errors.Is(err, client.ErrInvalidInput) { ... }
package client
