// Command unpkg recovers the files embedded in packaged Node.js executables.
package main

import (
	"os"

	"github.com/meigma/unpkg/cmd/unpkg/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
