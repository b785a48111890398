// Package httputil holds the response helpers every handler uses.
//
// All responses are JSON and carry Access-Control-Allow-Origin: * so the
// public subscribe and unsubscribe pages can call the API from any origin.
// Success bodies are either a JSON string message ("OK") or an object;
// errors are {"error": "..."}.
package httputil
