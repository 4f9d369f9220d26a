// Package client is the request/response runtime behind every docflow API
// call. One operation, [Client.Issue], covers streamed and non-streamed calls:
// it builds the request with package request, sends it through the middleware
// chain (timeout, retry, logging, user middlewares) and classifies the
// response with package content or hands it to package stream.
//
// The primary entry point is [New], which accepts a config.Config and a set of
// functional options (e.g. [WithLogger], [WithObserver], [WithMiddleware]).
// For typed results use [Send] and [StreamRecords].
package client
