// Command parseratorctl performs operator tasks against the Parserator
// database: key issuance, tier changes and quota maintenance.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}
