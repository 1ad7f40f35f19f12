// Command storefront manages the local-first cart and session mirror and
// runs the auth server.
package main

import "github.com/mesh-intelligence/storefront/internal/cli"

func main() {
	cli.Execute()
}
