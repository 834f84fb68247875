// Package ports declares the interfaces the academy core depends on. Concrete
// implementations live in the adapters package.
package ports
