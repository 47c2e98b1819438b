// Package api implements the HTTP handlers for the clipstream REST surface.
package api
