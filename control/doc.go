// Package control holds the client's runtime introspection surface: a
// dynamic settings store with reload listeners, a metrics registry, and a
// debug probe registry. ClientContext wires all three for diagnostics;
// none of them influence request routing on their own.
package control
