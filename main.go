// The main package for the carcrawler executable.
package main

import (
	"github.com/Harryguci/Car-Resource-Crawler/cmd"
)

func main() {
	cmd.Execute()
}
