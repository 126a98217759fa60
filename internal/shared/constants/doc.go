// Package constants centralizes defaults shared across the CLI.
//
// Storing file permissions and session timing defaults in one place prevents
// magic numbers from scattering across cmd/ and internal/. The values here
// reflect conservative defaults for slow switch CPUs and can be referenced from
// multiple packages without introducing import cycles.
package constants
