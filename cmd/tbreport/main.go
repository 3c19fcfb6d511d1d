// Command tbreport drives the TB community-reporting application end to end: it
// files an anonymous barrier report and verifies the report panel lists it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
