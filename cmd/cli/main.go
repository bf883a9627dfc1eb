// halog - linac machine log analysis
//
// halog parses parameter readings out of machine logs, stores them, and
// reports statistics, trends and anomalies per parameter.
package main

import (
	"os"

	"github.com/ccollicutt/halog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
