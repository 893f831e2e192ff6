// Package render draws the PNG charts (worm, trend, increments, histogram)
// with go-chart and executes the HTML status pages. It is shared by the
// server's chart and page routes and by the report tool.
package render
