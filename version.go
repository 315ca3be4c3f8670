// Package appverify locates a packaged desktop application and verifies
// that it starts.
package appverify

// Version is the appverify release version.
const Version = "0.1.0"
