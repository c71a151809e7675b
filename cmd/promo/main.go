// Command promo runs promotion uploads from the campaign spreadsheet and
// inspects their state.
package main

import (
	"fmt"
	"os"

	"promo-pipelines/logger"
	_ "promo-pipelines/pipelines/promotion" // Register product and brand pipelines
)

func main() {
	defer logger.Sync()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
