// Package httputil contains small helpers shared by all HTTP handlers:
// a standard JSON response envelope and request decoding with consistent
// 400 handling. Handlers never write raw bodies directly.
package httputil
