// Package types defines the Store and Backend interfaces, the cart and session
// entity types, configuration, and the standard errors shared by the storefront
// cart cache and session mirror.
package types
