// PlexQuant - isobaric labeling quantification tool
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/PlexQuant/cmd/plexquant/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
