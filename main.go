package main

import "github.com/sienaconfecciones/storefront/cmd"

func main() {
	cmd.Start()
}
