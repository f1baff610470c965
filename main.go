// Idiomatic entrypoint for the forgectl Cobra CLI; real work lives in cmd.
package main

import "github.com/embodios/forge/cmd"

func main() {
	cmd.Execute()
}
